//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"gate-admission/internal/domain"
	"gate-admission/internal/domain/model"
	"gate-admission/internal/usecase"
)

func TestNormalizeToken(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
		err  error
	}{
		{name: "should upper-case a manual code", raw: "abcd-efgh", want: "ABCD-EFGH"},
		{name: "should restore a missing dash", raw: "abcdefgh", want: "ABCD-EFGH"},
		{name: "should drop surrounding whitespace", raw: "  ABCD EFGH\n", want: "ABCD-EFGH"},
		{name: "should keep a qr code as is", raw: "MFRGGZDFMZTWQ2LKNNWG23TPOBYXE43U", want: "MFRGGZDFMZTWQ2LKNNWG23TPOBYXE43U"},
		{name: "should not insert a dash outside the manual alphabet", raw: "ABCDEFG0", want: "ABCDEFG0"},
		{name: "should reject punctuation", raw: "ABCD_EFGH", err: domain.ErrInvalidToken},
		{name: "should reject short input", raw: "ABC", err: domain.ErrInvalidToken},
		{name: "should reject oversized input", raw: strings.Repeat("A", 65), err: domain.ErrInvalidToken},
		{name: "should reject empty input", raw: "   ", err: domain.ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := usecase.NormalizeToken(tt.raw)
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Fatalf("expected %v, got %q, %v", tt.err, got, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("expected %q, got %q, %v", tt.want, got, err)
			}
		})
	}
}

func TestHashToken(t *testing.T) {
	a := usecase.HashToken("ABCD-EFGH")
	if len(a) != 64 || a != usecase.HashToken("ABCD-EFGH") || a == usecase.HashToken("ABCD-EFGJ") {
		t.Fatalf("unexpected hash %q", a)
	}
}

func TestCodeGenerator(t *testing.T) {
	gen := usecase.NewCodeGenerator()

	t.Run("should produce normalized codes of the expected shape", func(t *testing.T) {
		for i := 0; i < 200; i++ {
			codes, err := gen.Generate()
			if err != nil {
				t.Fatalf("generate: %v", err)
			}
			if len(codes.QR) != 32 {
				t.Fatalf("expected 32 char qr code, got %q", codes.QR)
			}
			if len(codes.Manual) != 9 || codes.Manual[4] != '-' {
				t.Fatalf("expected XXXX-XXXX manual code, got %q", codes.Manual)
			}
			for _, c := range []string{codes.QR, codes.Manual} {
				n, err := usecase.NormalizeToken(c)
				if err != nil || n != c {
					t.Fatalf("generated code %q does not survive normalization: %q, %v", c, n, err)
				}
			}
			if strings.ContainsAny(codes.Manual, "01IO") {
				t.Fatalf("manual code %q uses an ambiguous character", codes.Manual)
			}
		}
	})

	t.Run("should not repeat itself", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 1000; i++ {
			codes, _ := gen.Generate()
			if seen[codes.QR] {
				t.Fatalf("repeated qr code %q", codes.QR)
			}
			seen[codes.QR] = true
		}
	})
}

func TestPolicyResolver(t *testing.T) {
	no := false
	fallback := model.AttendancePolicy{CheckInAllowed: true, CheckOutAllowed: true, ReentryAllowed: true}

	t.Run("should override field by field", func(t *testing.T) {
		r := usecase.NewPolicyResolver(nil, fallback)
		c := &model.Credential{Overrides: model.PolicyOverride{Reentry: &no}}
		got := r.Resolve(fallback, c)
		want := model.AttendancePolicy{CheckInAllowed: true, CheckOutAllowed: true, ReentryAllowed: false}
		if got != want {
			t.Fatalf("expected %+v, got %+v", want, got)
		}
	})

	t.Run("should fall back to the global default for tickets without a policy", func(t *testing.T) {
		r := usecase.NewPolicyResolver(nil, fallback)
		got, err := r.Defaults(context.Background(), "any")
		if err != nil || got != fallback {
			t.Fatalf("expected fallback, got %+v, %v", got, err)
		}
	})
}
