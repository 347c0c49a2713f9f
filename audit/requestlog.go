package audit

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"sitesmith/logging"
)

// pricing is USD per million tokens. Unknown models fall back to the
// provider's default row; unknown providers cost zero.
type pricing struct {
	input  float64
	output float64
}

var priceTable = map[string]map[string]pricing{
	"openai": {
		"gpt-4o":      {input: 2.50, output: 10.00},
		"gpt-4o-mini": {input: 0.15, output: 0.60},
		"":            {input: 2.50, output: 10.00},
	},
	"anthropic": {
		"claude-sonnet-4-20250514": {input: 3.00, output: 15.00},
		"claude-3-5-haiku-latest":  {input: 0.80, output: 4.00},
		"":                         {input: 3.00, output: 15.00},
	},
}

// EstimateCost returns the estimated USD cost of one model call.
func EstimateCost(provider, model string, inputTokens, outputTokens int) float64 {
	models, ok := priceTable[provider]
	if !ok {
		return 0
	}
	p, ok := models[model]
	if !ok {
		p = models[""]
	}
	return (float64(inputTokens)*p.input + float64(outputTokens)*p.output) / 1e6
}

// RequestEntry is one row of the request log.
type RequestEntry struct {
	Time         time.Time
	Provider     string
	Model        string
	Project      string
	Prompt       string
	FirstToken   time.Duration
	Elapsed      time.Duration
	InputTokens  int
	OutputTokens int
}

// RequestLog appends one fixed-width row per model request to a single file,
// giving a scannable ledger of what was asked, how fast it answered, and what
// it cost.
type RequestLog struct {
	mu     sync.Mutex
	path   string
	logger logging.Logger
}

// NewRequestLog creates a request log at path, writing the header row if the
// file does not exist yet.
func NewRequestLog(path string, logger logging.Logger) (*RequestLog, error) {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	rl := &RequestLog{path: path, logger: logger}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		header := fmt.Sprintf(
			"%-20s  %-10s  %-26s  %-20s  %-40s  %8s  %8s  %8s  %8s  %10s\n",
			"TIMESTAMP", "PROVIDER", "MODEL", "PROJECT", "PROMPT", "TTFT", "TOTAL", "TOK_IN", "TOK_OUT", "COST_USD",
		)
		if err := os.WriteFile(path, []byte(header), 0o644); err != nil {
			return nil, fmt.Errorf("create request log: %w", err)
		}
	}
	return rl, nil
}

// Record appends one entry. Failures are logged and swallowed; an audit row
// is never worth failing a run over.
func (r *RequestLog) Record(e RequestEntry) {
	cost := EstimateCost(e.Provider, e.Model, e.InputTokens, e.OutputTokens)
	row := fmt.Sprintf(
		"%-20s  %-10s  %-26s  %-20s  %-40s  %8s  %8s  %8d  %8d  %10.4f\n",
		e.Time.UTC().Format("2006-01-02 15:04:05"),
		clip(e.Provider, 10),
		clip(e.Model, 26),
		clip(e.Project, 20),
		clip(sanitizePrompt(e.Prompt), 40),
		e.FirstToken.Round(time.Millisecond),
		e.Elapsed.Round(time.Millisecond),
		e.InputTokens,
		e.OutputTokens,
		cost,
	)

	r.mu.Lock()
	defer r.mu.Unlock()
	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		r.logger.Warn("audit.requestlog_failed", "error", err.Error())
		return
	}
	defer f.Close()
	if _, err := f.WriteString(row); err != nil {
		r.logger.Warn("audit.requestlog_failed", "error", err.Error())
	}
}

// Path returns the request log location.
func (r *RequestLog) Path() string { return r.path }

func sanitizePrompt(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	return strings.TrimSpace(s)
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
