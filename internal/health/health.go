package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jasper0315/icebreak-app/internal/config"
	"github.com/jasper0315/icebreak-app/internal/history"
)

type CheckResult struct {
	Name    string        `json:"name"`
	OK      bool          `json:"ok"`
	Latency time.Duration `json:"latency_ms"`
	Error   string        `json:"error,omitempty"`
}

type HealthStatus struct {
	OK        bool          `json:"ok"`
	Checks    []CheckResult `json:"checks"`
	CheckedAt time.Time     `json:"checked_at"`
}

func (h HealthStatus) String() string {
	status := "OK"
	if !h.OK {
		status = "FAIL"
	}
	s := fmt.Sprintf("Health: %s\n", status)
	for _, c := range h.Checks {
		mark := "✓"
		if !c.OK {
			mark = "✗"
		}
		s += fmt.Sprintf("  %s %s (%dms)", mark, c.Name, c.Latency.Milliseconds())
		if c.Error != "" {
			s += fmt.Sprintf(" - %s", c.Error)
		}
		s += "\n"
	}
	return s
}

// CheckAll runs all provider checks and returns combined status.
func CheckAll(ctx context.Context, cfg config.Config) HealthStatus {
	checks := []CheckResult{
		checkGemini(ctx, cfg),
		checkHistory(cfg),
	}
	if cfg.TTS.Provider == "elevenlabs" {
		checks = append(checks, checkElevenLabs(ctx, cfg))
	}

	allOK := true
	for _, c := range checks {
		if !c.OK {
			allOK = false
		}
	}

	return HealthStatus{
		OK:        allOK,
		Checks:    checks,
		CheckedAt: time.Now().UTC(),
	}
}

func checkGemini(ctx context.Context, cfg config.Config) CheckResult {
	start := time.Now()
	result := CheckResult{Name: "gemini"}

	if cfg.LLM.APIKey == "" {
		result.Error = "GEMINI_API_KEY not set"
		result.Latency = time.Since(start)
		return result
	}

	// List models is the lightest authenticated call.
	req, err := http.NewRequestWithContext(ctx, "GET",
		"https://generativelanguage.googleapis.com/v1beta/models?pageSize=1", nil)
	if err != nil {
		result.Error = fmt.Sprintf("request build failed: %v", err)
		result.Latency = time.Since(start)
		return result
	}
	req.Header.Set("x-goog-api-key", cfg.LLM.APIKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		result.Error = fmt.Sprintf("request failed: %v", err)
		result.Latency = time.Since(start)
		return result
	}
	defer resp.Body.Close()
	result.Latency = time.Since(start)

	if resp.StatusCode == 401 || resp.StatusCode == 403 {
		result.Error = fmt.Sprintf("invalid API key (%d)", resp.StatusCode)
		return result
	}
	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		result.Error = fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, string(body))
		return result
	}

	result.OK = true
	return result
}

func checkElevenLabs(ctx context.Context, cfg config.Config) CheckResult {
	start := time.Now()
	result := CheckResult{Name: "elevenlabs"}

	if cfg.TTS.APIKey == "" {
		result.Error = "ELEVENLABS_API_KEY not set"
		result.Latency = time.Since(start)
		return result
	}
	if cfg.TTS.VoiceID == "" {
		result.Error = "ELEVENLABS_VOICE_ID not set"
		result.Latency = time.Since(start)
		return result
	}

	// Minimal one-character synthesis; works with TTS-only API keys.
	url := fmt.Sprintf("https://api.elevenlabs.io/v1/text-to-speech/%s/stream", cfg.TTS.VoiceID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, strings.NewReader(`{"text":"."}`))
	if err != nil {
		result.Error = fmt.Sprintf("request build failed: %v", err)
		result.Latency = time.Since(start)
		return result
	}
	req.Header.Set("xi-api-key", cfg.TTS.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		result.Error = fmt.Sprintf("request failed: %v", err)
		result.Latency = time.Since(start)
		return result
	}
	defer resp.Body.Close()
	result.Latency = time.Since(start)

	switch resp.StatusCode {
	case 200:
		io.Copy(io.Discard, resp.Body)
		result.OK = true
	case 401:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		result.Error = fmt.Sprintf("invalid API key (401): %s", string(body))
	case 404:
		result.Error = fmt.Sprintf("voice ID %q not found", cfg.TTS.VoiceID)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		result.Error = fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, string(body))
	}
	return result
}

func checkHistory(cfg config.Config) CheckResult {
	start := time.Now()
	result := CheckResult{Name: "history"}

	switch cfg.History.Driver {
	case "memory":
		result.OK = true
	case "sqlite", "sqlite3":
		st, err := history.OpenSQLite(cfg.History.DSN)
		if err != nil {
			result.Error = err.Error()
		} else {
			st.Close()
			result.OK = true
		}
	default:
		result.Error = fmt.Sprintf("unknown history driver %q", cfg.History.Driver)
	}
	result.Latency = time.Since(start)
	return result
}
