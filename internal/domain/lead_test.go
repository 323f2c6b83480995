package domain

import (
	"testing"
)

func TestParseStatusFromString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    Status
		wantErr bool
	}{
		{input: "new", want: StatusNew},
		{input: " SENT ", want: StatusSent},
		{input: "Replied", want: StatusReplied},
		{input: "bounced", want: StatusBounced},
		{input: "unknown", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseStatusFromString(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseStatusFromString(%q) expected error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseStatusFromString(%q) error = %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseStatusFromString(%q) = %s, want %s", tt.input, got, tt.want)
		}
	}
}

func TestCanTransitionIsMonotonic(t *testing.T) {
	t.Parallel()

	allowed := []struct{ from, to Status }{
		{StatusNew, StatusQueued},
		{StatusNew, StatusSent},
		{StatusNew, StatusFailed},
		{StatusQueued, StatusSent},
		{StatusQueued, StatusFailed},
	}
	for _, tt := range allowed {
		if !CanTransition(tt.from, tt.to) {
			t.Errorf("CanTransition(%s, %s) = false, want true", tt.from, tt.to)
		}
	}

	denied := []struct{ from, to Status }{
		{StatusSent, StatusNew},
		{StatusSent, StatusQueued},
		{StatusFailed, StatusSent},
		{StatusQueued, StatusNew},
		{StatusNew, StatusReplied},
		{StatusNew, StatusBounced},
	}
	for _, tt := range denied {
		if CanTransition(tt.from, tt.to) {
			t.Errorf("CanTransition(%s, %s) = true, want false", tt.from, tt.to)
		}
	}
}

func TestLeadValidate(t *testing.T) {
	t.Parallel()

	lead := &Lead{Key: "l1", Email: "jane@acme.test", Status: StatusNew}
	if err := lead.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	missingEmail := &Lead{Key: "l1", Status: StatusNew}
	if err := missingEmail.Validate(); err == nil {
		t.Fatal("Validate() expected error for missing email")
	}

	badStatus := &Lead{Key: "l1", Email: "jane@acme.test", Status: Status("archived")}
	if err := badStatus.Validate(); err == nil {
		t.Fatal("Validate() expected error for invalid status")
	}
}

func TestLeadFieldFallsBackToEmail(t *testing.T) {
	t.Parallel()

	lead := &Lead{
		Key:    "l1",
		Email:  "jane@acme.test",
		Status: StatusNew,
		Fields: map[string]string{FieldCompany: "Acme"},
	}

	if got, ok := lead.Field(FieldCompany); !ok || got != "Acme" {
		t.Fatalf("Field(company) = %q, %v", got, ok)
	}
	if got, ok := lead.Field(FieldEmail); !ok || got != "jane@acme.test" {
		t.Fatalf("Field(email) = %q, %v", got, ok)
	}
	if _, ok := lead.Field(FieldPainPoint); ok {
		t.Fatal("Field(pain_point) should be absent")
	}
}
