package apmagent

import (
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	envServiceName        = "APMAGENT_SERVICE_NAME"
	envSecretToken        = "APMAGENT_SECRET_TOKEN"
	envServerURL          = "APMAGENT_SERVER_URL"
	envVerifyServerCert   = "APMAGENT_VERIFY_SERVER_CERT"
	envAsyncMode          = "APMAGENT_ASYNC_MODE"
	envCompressLevel      = "APMAGENT_COMPRESS_LEVEL"
	envMaxFlushTime       = "APMAGENT_MAX_FLUSH_TIME"
	envMaxBufferSize      = "APMAGENT_MAX_BUFFER_SIZE"
	envTransactionMaxSpans = "APMAGENT_TRANSACTION_MAX_SPANS"
	envTransactionSampleRate = "APMAGENT_TRANSACTION_SAMPLE_RATE"
	envIgnorePatterns     = "APMAGENT_TRANSACTIONS_IGNORE_PATTERNS"
	envSpanFramesMinDuration = "APMAGENT_SPAN_FRAMES_MIN_DURATION"
	envCollectLocalVariables = "APMAGENT_COLLECT_LOCAL_VARIABLES"
	envLocalVarMaxLength  = "APMAGENT_LOCAL_VAR_MAX_LENGTH"
	envLocalVarListMaxLength = "APMAGENT_LOCAL_VAR_LIST_MAX_LENGTH"
	envDisableSend        = "APMAGENT_DISABLE_SEND"
	envEnvironment        = "APMAGENT_ENVIRONMENT"
	envIncludePaths       = "APMAGENT_INCLUDE_PATHS"
	envExcludePaths       = "APMAGENT_EXCLUDE_PATHS"

	defaultMaxFlushTime          = 10 * time.Second
	defaultMaxBufferSize         = 750 * 1024
	defaultTransactionMaxSpans   = 500
	defaultTransactionSampleRate = 1.0
	defaultCompressLevel         = 6
	defaultLocalVarMaxLength     = 200
	defaultLocalVarListMaxLength = 10
)

var serviceNamePattern = regexp.MustCompile(`^[a-zA-Z0-9 _-]+$`)

// tagNamePattern excludes '.', '*', and '"', which collide with reserved
// characters in the collector's tag/label indexing.
var tagNamePattern = regexp.MustCompile(`^[^.*"]+$`)

// collectLocalVariablesMode selects which event kinds get caller-supplied
// local variables attached at serialization time.
type collectLocalVariablesMode string

const (
	collectNone         collectLocalVariablesMode = ""
	collectErrors       collectLocalVariablesMode = "errors"
	collectTransactions collectLocalVariablesMode = "transactions"
	collectAll          collectLocalVariablesMode = "all"
)

// ClientOptions configures a Client. Any field left zero falls back to its
// environment variable, and then to a built-in default.
type ClientOptions struct {
	ServiceName    string
	SecretToken    string
	ServerURL      string
	TransportClass string // empty disables send regardless of ServerURL
	Environment    string

	VerifyServerCert *bool
	AsyncMode        *bool
	DisableSend      *bool

	CompressLevel int

	MaxFlushTime  time.Duration
	MaxBufferSize int

	TransactionMaxSpans       int
	TransactionSampleRate     float64
	TransactionsIgnorePatterns []*regexp.Regexp

	SpanFramesMinDuration time.Duration
	CollectLocalVariables collectLocalVariablesMode
	LocalVarMaxLength     int
	LocalVarListMaxLength int

	IncludePaths []*regexp.Regexp
	ExcludePaths []*regexp.Regexp

	Sampler *sampler
}

// applyEnvDefaults fills any unset option from its environment variable,
// mirroring the env-var-backed configuration surface conventional for this
// kind of agent.
func (o *ClientOptions) applyEnvDefaults() {
	if o.ServiceName == "" {
		o.ServiceName = os.Getenv(envServiceName)
	}
	if o.SecretToken == "" {
		o.SecretToken = os.Getenv(envSecretToken)
	}
	if o.ServerURL == "" {
		o.ServerURL = os.Getenv(envServerURL)
	}
	if o.Environment == "" {
		o.Environment = os.Getenv(envEnvironment)
	}
	if o.VerifyServerCert == nil {
		v := envBool(envVerifyServerCert, true)
		o.VerifyServerCert = &v
	}
	if o.AsyncMode == nil {
		v := envBool(envAsyncMode, true)
		o.AsyncMode = &v
	}
	if o.DisableSend == nil {
		v := envBool(envDisableSend, false)
		o.DisableSend = &v
	}
	if o.CompressLevel == 0 {
		o.CompressLevel = envInt(envCompressLevel, defaultCompressLevel)
	}
	if o.MaxFlushTime == 0 {
		o.MaxFlushTime = envDuration(envMaxFlushTime, defaultMaxFlushTime)
	}
	if o.MaxBufferSize == 0 {
		o.MaxBufferSize = envInt(envMaxBufferSize, defaultMaxBufferSize)
	}
	if o.TransactionMaxSpans == 0 {
		o.TransactionMaxSpans = envInt(envTransactionMaxSpans, defaultTransactionMaxSpans)
	}
	if o.TransactionSampleRate == 0 {
		o.TransactionSampleRate = envFloat(envTransactionSampleRate, defaultTransactionSampleRate)
	}
	if o.LocalVarMaxLength == 0 {
		o.LocalVarMaxLength = envInt(envLocalVarMaxLength, defaultLocalVarMaxLength)
	}
	if o.LocalVarListMaxLength == 0 {
		o.LocalVarListMaxLength = envInt(envLocalVarListMaxLength, defaultLocalVarListMaxLength)
	}
	if o.CollectLocalVariables == collectNone {
		o.CollectLocalVariables = collectLocalVariablesMode(os.Getenv(envCollectLocalVariables))
	}
	if o.TransactionsIgnorePatterns == nil {
		o.TransactionsIgnorePatterns = envRegexpList(envIgnorePatterns)
	}
	if o.SpanFramesMinDuration == 0 {
		o.SpanFramesMinDuration = envDuration(envSpanFramesMinDuration, 0)
	}
	if o.IncludePaths == nil {
		o.IncludePaths = envRegexpList(envIncludePaths)
	}
	if o.ExcludePaths == nil {
		o.ExcludePaths = envRegexpList(envExcludePaths)
	}
}

// validateServiceName reports whether name satisfies the
// `[a-zA-Z0-9 _-]+` pattern required of service_name.
func validateServiceName(name string) bool {
	return name != "" && serviceNamePattern.MatchString(name)
}

func envBool(key string, def bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return time.Duration(secs * float64(time.Second))
}

// envRegexpList parses a comma-separated list of regexp patterns from key,
// logging and skipping any entry that fails to compile.
func envRegexpList(key string) []*regexp.Regexp {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	var out []*regexp.Regexp
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		re, err := regexp.Compile(part)
		if err != nil {
			Logger.Printf("invalid pattern %q in %s: %v", part, key, err)
			continue
		}
		out = append(out, re)
	}
	return out
}
