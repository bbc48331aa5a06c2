package platformapi

import (
	"github.com/beacon-platform/beacon/webmodule"
)

const homePage = `<!DOCTYPE html>
<html>
<head><title>{{DEVICE_NAME}}</title></head>
<body>
{{NAV_MENU}}
{{SECURITY_NOTICE}}
<h1>{{DEVICE_NAME}}</h1>
<p>The device is ready.</p>
</body>
</html>`

const portalPage = `<!DOCTYPE html>
<html>
<head><title>{{DEVICE_NAME}} Setup</title></head>
<body>
<h1>Connect {{DEVICE_NAME}}</h1>
<p>Select your network and enter its passphrase.</p>
<form method="post" action="/api/wifi">
<input type="hidden" name="_csrf" value="{{csrfToken}}">
<select id="ssid" name="ssid"></select>
<input type="password" name="password" placeholder="Passphrase">
<button type="submit">Connect</button>
</form>
<script>
fetch('/api/scan', {headers: {'X-CSRF-Token': '{{csrfToken}}'}})
  .then(function (r) { return r.json(); })
  .then(function (d) {
    var sel = document.getElementById('ssid');
    d.networks.forEach(function (n) {
      var opt = document.createElement('option');
      opt.value = n.ssid;
      opt.textContent = n.ssid + ' (' + n.rssi + ' dBm)';
      sel.appendChild(opt);
    });
  });
</script>
</body>
</html>`

const loginPage = `<!DOCTYPE html>
<html>
<head><title>Login - {{DEVICE_NAME}}</title></head>
<body>
{{NAV_MENU}}
<h1>Login</h1>
<form method="post" action="/api/login">
<input type="hidden" name="_csrf" value="{{csrfToken}}">
<input type="hidden" name="redirect" value="{{redirectUrl}}">
<input type="text" name="username" placeholder="Username" autocomplete="username">
<input type="password" name="password" placeholder="Password" autocomplete="current-password">
<button type="submit">Login</button>
</form>
</body>
</html>`

const accountPage = `<!DOCTYPE html>
<html>
<head><title>Account - {{DEVICE_NAME}}</title></head>
<body>
{{NAV_MENU}}
{{SECURITY_NOTICE}}
<h1>Account: {{username}}</h1>
<form id="password-form">
<input type="password" id="new-password" placeholder="New password" autocomplete="new-password">
<button type="submit">Change password</button>
</form>
<p id="password-result"></p>
<script>
document.getElementById('password-form').addEventListener('submit', function (e) {
  e.preventDefault();
  fetch('/api/user', {
    method: 'PUT',
    headers: {'Content-Type': 'application/json', 'X-CSRF-Token': '{{csrfToken}}'},
    body: JSON.stringify({password: document.getElementById('new-password').value})
  }).then(function (r) {
    document.getElementById('password-result').textContent =
      r.ok ? 'Password updated.' : 'Update failed (' + r.status + ').';
  });
});
</script>
</body>
</html>`

const statusPage = `<!DOCTYPE html>
<html>
<head><title>Status - {{DEVICE_NAME}}</title></head>
<body>
{{NAV_MENU}}
<h1>Status</h1>
<pre id="status"></pre>
<script>
fetch('/api/status').then(function (r) { return r.json(); }).then(function (s) {
  document.getElementById('status').textContent = JSON.stringify(s, null, 2);
});
</script>
</body>
</html>`

const wifiPage = `<!DOCTYPE html>
<html>
<head><title>WiFi - {{DEVICE_NAME}}</title></head>
<body>
{{NAV_MENU}}
<h1>WiFi</h1>
<form method="post" action="/api/wifi">
<input type="hidden" name="_csrf" value="{{csrfToken}}">
<input type="text" name="ssid" placeholder="Network name">
<input type="password" name="password" placeholder="Passphrase">
<button type="submit">Save and reconnect</button>
</form>
<form method="post" action="/api/reset">
<input type="hidden" name="_csrf" value="{{csrfToken}}">
<button type="submit">Factory reset</button>
</form>
</body>
</html>`

func servePage(body string) webmodule.Handler {
	return func(req *webmodule.Request, res *webmodule.Response) {
		res.SetMimeType("text/html")
		res.SetContent(body)
	}
}

func registerPages(r webmodule.RouteRegistrar, deps Deps) error {
	routes := []webmodule.Route{
		{
			Method:   webmodule.GET,
			Pattern:  "/",
			Handler:  servePage(homePage),
			Auth:     webmodule.AuthRequirements{webmodule.AuthLocalOnly},
			NavTitle: "Home",
			Docs:     &webmodule.Docs{Summary: "Landing page", Tags: []string{"platform"}},
		},
		{
			Method:  webmodule.GET,
			Pattern: "/portal",
			Handler: servePage(portalPage),
			Auth:    webmodule.AuthRequirements{webmodule.AuthLocalOnly},
			Docs:    &webmodule.Docs{Summary: "Provisioning portal", Tags: []string{"platform"}},
		},
		{
			Method:  webmodule.GET,
			Pattern: "/login",
			Handler: servePage(loginPage),
			Auth:    webmodule.AuthRequirements{webmodule.AuthLocalOnly},
			Docs:    &webmodule.Docs{Summary: "Login form", Tags: []string{"platform"}},
		},
		{
			Method:   webmodule.GET,
			Pattern:  "/account",
			Handler:  servePage(accountPage),
			Auth:     webmodule.AuthRequirements{webmodule.AuthSession},
			NavTitle: "Account",
			Docs:     &webmodule.Docs{Summary: "Account settings", Tags: []string{"platform"}},
		},
		{
			Method:   webmodule.GET,
			Pattern:  "/status",
			Handler:  servePage(statusPage),
			Auth:     webmodule.AuthRequirements{webmodule.AuthLocalOnly},
			NavTitle: "Status",
			Docs:     &webmodule.Docs{Summary: "Device status page", Tags: []string{"platform"}},
		},
		{
			Method:   webmodule.GET,
			Pattern:  "/wifi",
			Handler:  servePage(wifiPage),
			Auth:     webmodule.AuthRequirements{webmodule.AuthLocalOnly},
			NavTitle: "WiFi",
			Docs:     &webmodule.Docs{Summary: "Network settings page", Tags: []string{"platform"}},
		},
	}
	for _, route := range routes {
		if err := r.RegisterWebRoute(route); err != nil {
			return err
		}
	}
	return nil
}
