package logx

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// OpsSender delivers a plain-text message to an operations chat.
// Implementations must be safe for concurrent use.
type OpsSender interface {
	SendOps(ctx context.Context, chatID, text string) error
}

// opsSink mirrors selected log lines to an operations chat.
//
// Invariants:
//   - Write never blocks the logging hot path (bounded queue, drop on full).
//   - The rate limiter caps outbound chat traffic, not local logging.
type opsSink struct {
	mu       sync.Mutex
	sender   OpsSender
	chatID   string
	minLevel zerolog.Level
	limiter  *rate.Limiter

	queue  chan opsItem
	once   sync.Once
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type opsItem struct {
	chatID string
	text   string
}

func newOpsSink(sender OpsSender) *opsSink {
	return &opsSink{
		sender:   sender,
		minLevel: zerolog.WarnLevel,
		queue:    make(chan opsItem, 128),
	}
}

func (o *opsSink) setSender(sender OpsSender) {
	o.mu.Lock()
	o.sender = sender
	o.mu.Unlock()
}

func (o *opsSink) apply(cfg OpsConfig) {
	o.mu.Lock()
	o.chatID = strings.TrimSpace(cfg.ChatID)
	o.minLevel = parseLevel(cfg.MinLevel, zerolog.WarnLevel)
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 1
	}
	o.limiter = rate.NewLimiter(rate.Limit(rps), rps)
	o.mu.Unlock()

	if cfg.Enabled {
		o.once.Do(func() {
			ctx, cancel := context.WithCancel(context.Background())
			o.cancel = cancel
			o.wg.Add(1)
			go func() {
				defer o.wg.Done()
				o.loop(ctx)
			}()
		})
	}
}

func (o *opsSink) close() {
	o.mu.Lock()
	cancel := o.cancel
	o.cancel = nil
	o.mu.Unlock()
	if cancel != nil {
		cancel()
		o.wg.Wait()
	}
}

func (o *opsSink) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case it := <-o.queue:
			o.mu.Lock()
			sender := o.sender
			o.mu.Unlock()
			if sender == nil {
				continue
			}
			_ = sender.SendOps(ctx, it.chatID, it.text)
		}
	}
}

func (o *opsSink) Write(p []byte) (int, error) {
	return o.WriteLevel(zerolog.InfoLevel, p)
}

func (o *opsSink) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	o.mu.Lock()
	chatID := o.chatID
	min := o.minLevel
	lim := o.limiter
	sender := o.sender
	o.mu.Unlock()

	if chatID == "" || sender == nil || level < min {
		return len(p), nil
	}
	if lim != nil && !lim.Allow() {
		return len(p), nil
	}

	text := renderLine(p)
	if text == "" {
		return len(p), nil
	}
	select {
	case o.queue <- opsItem{chatID: chatID, text: text}:
	default:
		// drop rather than block logging
	}
	return len(p), nil
}

// renderLine turns a zerolog JSON line into a compact human-readable message.
func renderLine(p []byte) string {
	var m map[string]any
	if err := json.Unmarshal(p, &m); err != nil {
		return truncate(strings.TrimSpace(string(p)), 3500)
	}

	lvl, _ := m["level"].(string)
	msg, _ := m["message"].(string)

	var b strings.Builder
	if lvl != "" {
		b.WriteString("[")
		b.WriteString(strings.ToUpper(lvl))
		b.WriteString("] ")
	}
	b.WriteString(msg)
	keys := make([]string, 0, len(m))
	for k := range m {
		switch k {
		case "time", "level", "message", "caller":
			continue
		}
		keys = append(keys, k)
	}
	// stable field order so identical events render identically
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString("\n- ")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(truncate(fmt.Sprint(m[k]), 600))
	}
	return truncate(b.String(), 3500)
}

func truncate(s string, maxN int) string {
	if maxN <= 0 || len(s) <= maxN {
		return s
	}
	if maxN < 10 {
		return s[:maxN]
	}
	return s[:maxN-3] + "..."
}
