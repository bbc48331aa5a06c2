package beacon

import (
	"testing"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMDNSHostname(t *testing.T) {
	assert.Equal(t, "beacon.local.", MDNSHostname("Beacon"))
	assert.Equal(t, "living-room-hub.local.", MDNSHostname("Living Room Hub"))
	assert.Equal(t, "beacon.local.", MDNSHostname(""))
	assert.Equal(t, "beacon.local.", MDNSHostname("  "))
}

func TestMDNSAnswer(t *testing.T) {
	m := NewMDNSResponder("Beacon", func() string { return "10.0.0.42" })

	query := new(dns.Msg)
	query.SetQuestion("beacon.local.", dns.TypeA)
	w := &recordingResponseWriter{}
	m.answer(w, query)

	require.NotNil(t, w.msg)
	require.Len(t, w.msg.Answer, 1)
	a, ok := w.msg.Answer[0].(*dns.A)
	require.True(t, ok)
	assert.Equal(t, "10.0.0.42", a.A.String())
	assert.Empty(t, w.msg.Question)
	assert.True(t, w.msg.Authoritative)

	// Case-insensitive name match.
	query = new(dns.Msg)
	query.SetQuestion("Beacon.Local.", dns.TypeA)
	w = &recordingResponseWriter{}
	m.answer(w, query)
	require.NotNil(t, w.msg)
	assert.Len(t, w.msg.Answer, 1)
}

func TestMDNSAnswerStaysQuiet(t *testing.T) {
	m := NewMDNSResponder("Beacon", func() string { return "10.0.0.42" })

	// Other names are none of our business.
	query := new(dns.Msg)
	query.SetQuestion("printer.local.", dns.TypeA)
	w := &recordingResponseWriter{}
	m.answer(w, query)
	assert.Nil(t, w.msg)

	// AAAA queries go unanswered.
	query = new(dns.Msg)
	query.SetQuestion("beacon.local.", dns.TypeAAAA)
	w = &recordingResponseWriter{}
	m.answer(w, query)
	assert.Nil(t, w.msg)

	// No interface address yet, no answer.
	m = NewMDNSResponder("Beacon", func() string { return "" })
	query = new(dns.Msg)
	query.SetQuestion("beacon.local.", dns.TypeA)
	w = &recordingResponseWriter{}
	m.answer(w, query)
	assert.Nil(t, w.msg)
}
