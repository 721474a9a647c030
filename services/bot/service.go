package botsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/trackwise/core"
)

// HTTPService proxies prompts to a generative-text API. Any upstream
// failure degrades to the local fallback reply so the endpoint never
// surfaces a third-party outage to users.
type HTTPService struct {
	conf   *core.Config
	logger core.Logger
	client *http.Client
}

var _ core.BotService = (*HTTPService)(nil)

func NewHTTPService(conf *core.Config, logger core.Logger) *HTTPService {
	return &HTTPService{
		conf:   conf,
		logger: logger,
		client: &http.Client{Timeout: conf.Bot.Timeout},
	}
}

type (
	generateRequest struct {
		Prompt string `json:"prompt"`
	}
	generateResponse struct {
		Text string `json:"text"`
	}
)

func (svc *HTTPService) Reply(ctx context.Context, prompt string) (string, error) {
	if svc.conf.Bot.APIURL == "" {
		return FallbackReply(prompt), nil
	}

	reply, err := svc.generate(ctx, prompt)
	if err != nil {
		svc.logger.Warn("bot API call failed, using fallback", err)
		return FallbackReply(prompt), nil
	}
	return reply, nil
}

func (svc *HTTPService) generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{Prompt: prompt})
	if err != nil {
		return "", errors.Wrap(err, "marshalling prompt")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, svc.conf.Bot.APIURL, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "building bot request")
	}
	req.Header.Set("Content-Type", "application/json")
	if svc.conf.Bot.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+svc.conf.Bot.APIKey)
	}

	res, err := svc.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "calling bot API")
	}
	defer func() { _ = res.Body.Close() }()
	if res.StatusCode != http.StatusOK {
		return "", errors.Errorf("bot API returned %s", res.Status)
	}

	var data generateResponse
	if err = json.NewDecoder(res.Body).Decode(&data); err != nil {
		return "", errors.Wrap(err, "decoding bot response")
	}
	if data.Text == "" {
		return "", errors.New("bot API returned an empty reply")
	}
	return data.Text, nil
}

// FallbackReply is the locally generated answer used when no API is
// configured or the upstream call fails.
func FallbackReply(prompt string) string {
	prompt = strings.ToLower(prompt)
	switch {
	case strings.Contains(prompt, "pomodoro"):
		return "Try a 25 minute focus session followed by a 5 minute break. Start a shared timer in a study room to stay accountable."
	case strings.Contains(prompt, "plan"), strings.Contains(prompt, "schedule"):
		return "Break your goal into small tasks, add them to your task list and schedule reminders for the time-sensitive ones."
	case strings.Contains(prompt, "motivat"):
		return "Log your study sessions on the progress page; watching the streak grow is the best motivator there is."
	}
	return fmt.Sprintf("I can help you plan study sessions, set reminders and track progress. Could you tell me more about %q?", strings.TrimSpace(prompt))
}

// DummyService always answers with the local fallback; used in tests.
type DummyService struct{}

var _ core.BotService = (*DummyService)(nil)

func NewDummyService() *DummyService { return &DummyService{} }

func (svc *DummyService) Reply(_ context.Context, prompt string) (string, error) {
	return FallbackReply(prompt), nil
}
