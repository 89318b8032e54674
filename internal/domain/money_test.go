package domain

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseMoney(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"zero", "0", "0", false},
		{"whole", "10000", "10000", false},
		{"two decimals", "148.50", "148.5", false},
		{"many decimals", "0.0001", "0.0001", false},
		{"negative", "-1", "", true},
		{"garbage", "ten", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMoney(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseMoney(%q) expected error, got nil", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMoney(%q) unexpected error: %v", tt.input, err)
			}
			if got.String() != tt.want {
				t.Errorf("ParseMoney(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestNotional_Exact(t *testing.T) {
	price := decimal.RequireFromString("150.10")
	got := Notional(price, 3)
	if !got.Equal(decimal.RequireFromString("450.30")) {
		t.Errorf("Notional() = %s, want 450.30", got)
	}

	cash := decimal.NewFromInt(10000).Sub(Notional(decimal.NewFromInt(150), 10))
	if !cash.Equal(decimal.NewFromInt(8500)) {
		t.Errorf("cash = %s, want 8500", cash)
	}
}

func TestJSONNumber_Unquoted(t *testing.T) {
	body, err := json.Marshal(map[string]json.Number{"price": JSONNumber(decimal.RequireFromString("150.25"))})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(body) != `{"price":150.25}` {
		t.Errorf("got %s, want %s", body, `{"price":150.25}`)
	}
}
