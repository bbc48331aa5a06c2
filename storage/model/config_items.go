package model

import (
	"encoding/json"
	"time"
)

// ConfigItem is a key/value setting stored in the "config" collection.
// Web modules use it for settings that survive reboots.
type ConfigItem struct {
	// ID is the primary key (UUID v4)
	ID string `json:"id"`
	// Key is the unique setting name
	Key string `json:"key"`
	// Value holds the setting as a JSON string
	Value     string `json:"value"`
	UpdatedAt int64  `json:"updatedAt"`
}

// NewConfigItem builds a ConfigItem stamped with the current time.
// The caller assigns the ID.
func NewConfigItem(key, value string) ConfigItem {
	return ConfigItem{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now().Unix(),
	}
}

// IsValid reports whether the record carries its required fields.
func (c ConfigItem) IsValid() bool {
	return c.ID != "" && c.Key != ""
}

func (c ConfigItem) ToJSON() string {
	data, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return string(data)
}

func ConfigItemFromJSON(data string) ConfigItem {
	var c ConfigItem
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return ConfigItem{}
	}
	return c
}
