package apmagent

import (
	"os"
	"testing"
	"time"
)

func TestValidateServiceName(t *testing.T) {
	cases := map[string]bool{
		"my-service":   true,
		"My Service_1": true,
		"":             false,
		"bad/service":  false,
		"bad.service":  false,
	}
	for name, want := range cases {
		if got := validateServiceName(name); got != want {
			t.Errorf("validateServiceName(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestApplyEnvDefaultsFillsUnsetFields(t *testing.T) {
	var o ClientOptions
	o.applyEnvDefaults()

	if o.CompressLevel != defaultCompressLevel {
		t.Errorf("CompressLevel = %d, want %d", o.CompressLevel, defaultCompressLevel)
	}
	if o.MaxFlushTime != defaultMaxFlushTime {
		t.Errorf("MaxFlushTime = %v, want %v", o.MaxFlushTime, defaultMaxFlushTime)
	}
	if o.TransactionMaxSpans != defaultTransactionMaxSpans {
		t.Errorf("TransactionMaxSpans = %d, want %d", o.TransactionMaxSpans, defaultTransactionMaxSpans)
	}
	if o.TransactionSampleRate != defaultTransactionSampleRate {
		t.Errorf("TransactionSampleRate = %v, want %v", o.TransactionSampleRate, defaultTransactionSampleRate)
	}
	if o.VerifyServerCert == nil || !*o.VerifyServerCert {
		t.Error("VerifyServerCert default should be true")
	}
	if o.DisableSend == nil || *o.DisableSend {
		t.Error("DisableSend default should be false")
	}
}

func TestApplyEnvDefaultsPreservesExplicitFalse(t *testing.T) {
	explicitFalse := false
	o := ClientOptions{VerifyServerCert: &explicitFalse}
	o.applyEnvDefaults()

	if o.VerifyServerCert == nil || *o.VerifyServerCert {
		t.Error("explicit VerifyServerCert=false was overridden by applyEnvDefaults")
	}
}

func TestApplyEnvDefaultsReadsPatternsAndDuration(t *testing.T) {
	for k, v := range map[string]string{
		envIgnorePatterns:        "^OPTIONS, ^HEAD",
		envSpanFramesMinDuration: "0.5",
		envIncludePaths:          "^github.com/apmhq/",
		envExcludePaths:          "vendor/",
	} {
		os.Setenv(k, v)
		k := k
		t.Cleanup(func() { os.Unsetenv(k) })
	}

	var o ClientOptions
	o.applyEnvDefaults()

	if len(o.TransactionsIgnorePatterns) != 2 {
		t.Fatalf("TransactionsIgnorePatterns = %v, want 2 entries", o.TransactionsIgnorePatterns)
	}
	if !o.TransactionsIgnorePatterns[0].MatchString("OPTIONS /health") {
		t.Error("first ignore pattern did not match OPTIONS /health")
	}
	if o.SpanFramesMinDuration != 500*time.Millisecond {
		t.Errorf("SpanFramesMinDuration = %v, want 500ms", o.SpanFramesMinDuration)
	}
	if len(o.IncludePaths) != 1 || !o.IncludePaths[0].MatchString("github.com/apmhq/agent-go") {
		t.Errorf("IncludePaths = %v, did not match expected path", o.IncludePaths)
	}
	if len(o.ExcludePaths) != 1 || !o.ExcludePaths[0].MatchString("vendor/foo") {
		t.Errorf("ExcludePaths = %v, did not match expected path", o.ExcludePaths)
	}
}

func TestEnvRegexpListSkipsInvalidPatterns(t *testing.T) {
	const key = "APMAGENT_TEST_PATTERN_LIST"
	os.Setenv(key, "valid, (unterminated")
	t.Cleanup(func() { os.Unsetenv(key) })

	got := envRegexpList(key)
	if len(got) != 1 || !got[0].MatchString("valid") {
		t.Errorf("envRegexpList = %v, want exactly the one valid pattern", got)
	}
}
