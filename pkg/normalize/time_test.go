package normalize

import (
	"testing"
	"time"

	"github.com/tidwall/gjson"
)

func TestParseTime(t *testing.T) {
	moscow := time.FixedZone("MSK", 3*3600)

	tests := []struct {
		name   string
		json   string
		rules  TimeRules
		want   time.Time
		wantOK bool
	}{
		{
			name:   "utc passes through",
			json:   `"2024-05-01T10:00:00Z"`,
			want:   time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
			wantOK: true,
		},
		{
			name:   "offset converted to utc",
			json:   `"2024-05-01T13:00:00+03:00"`,
			want:   time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
			wantOK: true,
		},
		{
			name:   "offset without colon",
			json:   `"2024-05-01T13:00:00+0300"`,
			want:   time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
			wantOK: true,
		},
		{
			name:   "unix seconds number",
			json:   `1714557600`,
			want:   time.Unix(1714557600, 0).UTC(),
			wantOK: true,
		},
		{
			name:   "unix seconds string",
			json:   `"1714557600"`,
			rules:  TimeRules{Unix: true},
			want:   time.Unix(1714557600, 0).UTC(),
			wantOK: true,
		},
		{
			name:   "zone-less value in configured zone",
			json:   `"2024-05-01 13:00:00"`,
			rules:  TimeRules{Zone: moscow},
			want:   time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
			wantOK: true,
		},
		{
			name:   "zone-less value defaults to utc",
			json:   `"2024-05-01T13:00"`,
			want:   time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC),
			wantOK: true,
		},
		{
			name:   "custom layout",
			json:   `"01.05.2024 13:00"`,
			rules:  TimeRules{Layout: "02.01.2006 15:04", Zone: moscow},
			want:   time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
			wantOK: true,
		},
		{name: "null", json: `null`},
		{name: "empty string", json: `""`},
		{name: "garbage", json: `"next tuesday"`},
		{name: "object", json: `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseTime(gjson.Parse(tt.json), tt.rules)
			if ok != tt.wantOK {
				t.Fatalf("parseTime(%s) ok = %v, want %v", tt.json, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if !got.Equal(tt.want) {
				t.Errorf("parseTime(%s) = %v, want %v", tt.json, got, tt.want)
			}
			if got.Location() != time.UTC {
				t.Errorf("parseTime(%s) location = %v, want UTC", tt.json, got.Location())
			}
		})
	}
}

func TestParseTime_Missing(t *testing.T) {
	v := gjson.Get(`{"a":1}`, "start")
	if _, ok := parseTime(v, TimeRules{}); ok {
		t.Error("parseTime(missing) ok = true, want false")
	}
}
