package identity

import (
	"context"
	"errors"
	"testing"
)

func TestIdentityMailbox(t *testing.T) {
	tests := []struct {
		name string
		id   Identity
		want string
	}{
		{"name and email", Identity{Name: "Jane Doe", Email: "jane@example.com"}, "Jane Doe <jane@example.com>"},
		{"email only", Identity{Email: "jane@example.com"}, "jane@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.id.Mailbox(); got != tt.want {
				t.Errorf("Mailbox() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIdentityFirstName(t *testing.T) {
	tests := []struct {
		name string
		id   Identity
		want string
	}{
		{"two-part name", Identity{Name: "Jane Doe", Email: "jane@example.com"}, "Jane"},
		{"single name", Identity{Name: "Jane", Email: "jane@example.com"}, "Jane"},
		{"no name falls back to email", Identity{Email: "jane@example.com"}, "jane@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.id.FirstName(); got != tt.want {
				t.Errorf("FirstName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolve_RequiredFields(t *testing.T) {
	ctx := context.Background()

	t.Run("missing email", func(t *testing.T) {
		p := &Static{Settings: TransportSettings{Host: "mail.example.com"}}
		_, _, err := Resolve(ctx, p)
		var missing *ConfigMissingError
		if !errors.As(err, &missing) {
			t.Fatalf("expected ConfigMissingError, got %v", err)
		}
		if missing.Field != "identity.email" {
			t.Errorf("Field = %q, want identity.email", missing.Field)
		}
	})

	t.Run("invalid email", func(t *testing.T) {
		p := &Static{
			ID:       Identity{Email: "not-an-address"},
			Settings: TransportSettings{Host: "mail.example.com"},
		}
		if _, _, err := Resolve(ctx, p); err == nil {
			t.Fatal("expected error for invalid email")
		}
	})

	t.Run("missing smtp host", func(t *testing.T) {
		p := &Static{ID: Identity{Email: "jane@example.com"}}
		_, _, err := Resolve(ctx, p)
		var missing *ConfigMissingError
		if !errors.As(err, &missing) {
			t.Fatalf("expected ConfigMissingError, got %v", err)
		}
		if missing.Field != "transport.host" {
			t.Errorf("Field = %q, want transport.host", missing.Field)
		}
	})

	t.Run("missing sendmail command", func(t *testing.T) {
		p := &Static{
			ID:       Identity{Email: "jane@example.com"},
			Settings: TransportSettings{Kind: TransportSendmail},
		}
		_, _, err := Resolve(ctx, p)
		var missing *ConfigMissingError
		if !errors.As(err, &missing) {
			t.Fatalf("expected ConfigMissingError, got %v", err)
		}
	})

	t.Run("unknown kind", func(t *testing.T) {
		p := &Static{
			ID:       Identity{Email: "jane@example.com"},
			Settings: TransportSettings{Kind: "pigeon"},
		}
		if _, _, err := Resolve(ctx, p); err == nil {
			t.Fatal("expected error for unknown transport kind")
		}
	})
}

func TestResolve_Defaults(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name         string
		security     SecurityMode
		wantPort     int
		wantSecurity SecurityMode
	}{
		{"no security defaults to port 25", "", 25, SecurityNone},
		{"starttls defaults to port 587", SecuritySTARTTLS, 587, SecuritySTARTTLS},
		{"implicit tls defaults to port 465", SecurityTLS, 465, SecurityTLS},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Static{
				ID: Identity{Name: "Jane Doe", Email: "jane@example.com"},
				Settings: TransportSettings{
					Host:     "mail.example.com",
					Security: tt.security,
				},
			}
			_, settings, err := Resolve(ctx, p)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if settings.Kind != TransportSMTP {
				t.Errorf("Kind = %q, want smtp", settings.Kind)
			}
			if settings.Port != tt.wantPort {
				t.Errorf("Port = %d, want %d", settings.Port, tt.wantPort)
			}
			if settings.Security != tt.wantSecurity {
				t.Errorf("Security = %q, want %q", settings.Security, tt.wantSecurity)
			}
			if settings.Addr() != "mail.example.com:"+map[int]string{25: "25", 587: "587", 465: "465"}[settings.Port] {
				t.Errorf("Addr() = %q", settings.Addr())
			}
		})
	}
}

func TestFallback(t *testing.T) {
	ctx := context.Background()

	primary := &Static{
		ID: Identity{Email: "override@example.com"},
		Settings: TransportSettings{
			Host: "primary.example.com",
		},
	}
	secondary := &Static{
		ID: Identity{Name: "Jane Doe", Email: "jane@example.com"},
		Settings: TransportSettings{
			Host:     "secondary.example.com",
			Port:     2525,
			Security: SecuritySTARTTLS,
			Username: "jane",
		},
	}

	p := &Fallback{Primary: primary, Secondary: secondary}

	id, err := p.Identity(ctx)
	if err != nil {
		t.Fatalf("Identity: %v", err)
	}
	if id.Email != "override@example.com" {
		t.Errorf("Email = %q, want override from primary", id.Email)
	}
	if id.Name != "Jane Doe" {
		t.Errorf("Name = %q, want fallback from secondary", id.Name)
	}

	settings, err := p.Transport(ctx)
	if err != nil {
		t.Fatalf("Transport: %v", err)
	}
	if settings.Host != "primary.example.com" {
		t.Errorf("Host = %q, want primary", settings.Host)
	}
	if settings.Port != 2525 {
		t.Errorf("Port = %d, want 2525 from secondary", settings.Port)
	}
	if settings.Username != "jane" {
		t.Errorf("Username = %q, want jane from secondary", settings.Username)
	}
}
