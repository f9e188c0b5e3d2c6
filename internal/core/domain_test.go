package core

import "testing"

func TestMonthKeyOrdering(t *testing.T) {
	cases := []struct {
		y1, m1, y2, m2 int
		less           bool
	}{
		{2023, 12, 2024, 1, true},
		{2024, 1, 2024, 2, true},
		{2024, 6, 2024, 6, false},
		{2024, 2, 2024, 1, false},
	}
	for _, tc := range cases {
		a, b := NewMonthKey(tc.y1, tc.m1), NewMonthKey(tc.y2, tc.m2)
		if got := a < b; got != tc.less {
			t.Errorf("%d-%02d < %d-%02d = %v, want %v", tc.y1, tc.m1, tc.y2, tc.m2, got, tc.less)
		}
	}
}

func TestMonthNext(t *testing.T) {
	m := Month{Year: 2024, Month: 12}
	y, mo := m.Next()
	if y != 2025 || mo != 1 {
		t.Fatalf("Next() = %d-%d, want 2025-1", y, mo)
	}

	m = Month{Year: 2024, Month: 5}
	y, mo = m.Next()
	if y != 2024 || mo != 6 {
		t.Fatalf("Next() = %d-%d, want 2024-6", y, mo)
	}
}

func TestMonthRange(t *testing.T) {
	m := Month{Year: 2024, Month: 2}
	start, end := m.Start(), m.End()
	if start.Format("2006-01-02") != "2024-02-01" {
		t.Errorf("Start() = %v", start)
	}
	if end.Format("2006-01-02") != "2024-03-01" {
		t.Errorf("End() = %v", end)
	}
}

func TestValidateYearMonth(t *testing.T) {
	if err := ValidateYearMonth(2024, 0); err == nil {
		t.Error("month 0 should be rejected")
	}
	if err := ValidateYearMonth(2024, 13); err == nil {
		t.Error("month 13 should be rejected")
	}
	if err := ValidateYearMonth(1800, 5); err == nil {
		t.Error("year 1800 should be rejected")
	}
	if err := ValidateYearMonth(2024, 12); err != nil {
		t.Errorf("2024-12 should be valid: %v", err)
	}
}

func TestValidateCurrency(t *testing.T) {
	for _, ok := range []string{"EUR", "USD", "JPY"} {
		if err := ValidateCurrency(ok); err != nil {
			t.Errorf("%q should be valid: %v", ok, err)
		}
	}
	for _, bad := range []string{"", "eur", "EURO", "E1R"} {
		if err := ValidateCurrency(bad); err == nil {
			t.Errorf("%q should be rejected", bad)
		}
	}
}

func TestAccountValidate(t *testing.T) {
	acc := Account{Name: "Checking", Currency: "EUR", Kind: AccountBank}
	if err := acc.Validate(); err != nil {
		t.Fatalf("valid account rejected: %v", err)
	}

	acc.Name = "  "
	if err := acc.Validate(); err == nil {
		t.Error("blank name should be rejected")
	}

	acc = Account{Name: "Cold wallet", Currency: "EUR", Kind: AccountCrypto}
	if err := acc.Validate(); err == nil {
		t.Error("crypto account without coin id should be rejected")
	}
	acc.CoinID = "bitcoin"
	if err := acc.Validate(); err != nil {
		t.Errorf("crypto account with coin id rejected: %v", err)
	}
}
