// Package gemini implements the multimodal generation stage adapters: stat
// generation from an input photograph and concept image synthesis from a
// text prompt. Both calls are synchronous; there is no job polling here.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/roboforge/internal/tlsutil"
	"github.com/BaSui01/roboforge/types"
)

// statsPrompt asks for a flat JSON object so the strict decode path works;
// the fallback extractor covers replies that ignore the schema.
const statsPrompt = `Estimate the calories, protein and fiber of the food in this image, ` +
	`derive HP (500-2000), ATK (10-100) and DEF (5-50) from those estimates, and invent a combat robot ` +
	`manufactured by the fictional corporation "Oishii Industries": a robot Name, a short Lore blurb framing ` +
	`it as a weapon, and a detailed English visual description prompt for a text-to-image model depicting a ` +
	`mechanical battle robot themed after this food. ` +
	`IMPORTANT: the visual description MUST explicitly require "full body standing" and ` +
	`"extreme full body shot, feet completely visible" so nothing is cropped. ` +
	`Output ONLY a flat JSON object with this exact shape: ` +
	`{"name": "...", "lore": "...", "hp": 1000, "atk": 50, "def": 20, "visual_description": "..."}`

// imageInstruction is appended to the visual description before image
// synthesis to force an uncropped, riggable full-body pose.
const imageInstruction = `, highly zoomed out, full A-pose with slightly spread arms. ` +
	`The ENTIRE body from the top of the head to the bottom of the feet MUST be completely visible ` +
	`inside the frame. Leave plenty of empty white space around the character. DO NOT crop the image ` +
	`at the ankles or head. single white background #FFFFFF, mechanical combat robot design, clear silhouette.`

// Config configures the Gemini client.
type Config struct {
	APIKey     string        `yaml:"api_key"`
	BaseURL    string        `yaml:"base_url"`
	StatsModel string        `yaml:"stats_model"`
	ImageModel string        `yaml:"image_model"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Client calls the Gemini generateContent API.
type Client struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// NewClient creates a new Gemini client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.StatsModel == "" {
		cfg.StatsModel = "gemini-2.5-flash"
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = "nano-banana-pro-preview"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &Client{
		cfg:    cfg,
		client: tlsutil.SecureHTTPClient(cfg.Timeout),
		logger: logger.With(zap.String("component", "gemini")),
	}
}

type geminiPart struct {
	Text       string        `json:"text,omitempty"`
	InlineData *geminiInline `json:"inlineData,omitempty"`
}

type geminiInline struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiGenConfig struct {
	ResponseMimeType   string   `json:"responseMimeType,omitempty"`
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig *geminiGenConfig `json:"generationConfig,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text       string `json:"text,omitempty"`
				InlineData *struct {
					MimeType string `json:"mimeType"`
					Data     string `json:"data"`
				} `json:"inlineData,omitempty"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (c *Client) generateContent(ctx context.Context, model string, body geminiRequest) (*geminiResponse, error) {
	payload, _ := json.Marshal(body)
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		strings.TrimRight(c.cfg.BaseURL, "/"), model, c.cfg.APIKey)

	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, types.Errorf(types.ErrSubmitFailed, "gemini request failed for model %s", model).WithCause(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		errBody, _ := io.ReadAll(resp.Body)
		return nil, types.Errorf(types.ErrSubmitFailed, "gemini error: status=%d body=%s",
			resp.StatusCode, string(errBody)).WithHTTPStatus(resp.StatusCode)
	}

	var gResp geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&gResp); err != nil {
		return nil, types.NewError(types.ErrDecodeFailed, "failed to decode gemini response").WithCause(err)
	}
	return &gResp, nil
}

// GenerateStats derives robot stats from a base64-encoded photograph.
// Replies that do not honor the requested flat schema are recovered by a
// best-effort recursive key search instead of failing the run.
func (c *Client) GenerateStats(ctx context.Context, imageB64 string) (*types.RobotStats, error) {
	body := geminiRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{
				{Text: statsPrompt},
				{InlineData: &geminiInline{MimeType: "image/png", Data: imageB64}},
			},
		}},
		GenerationConfig: &geminiGenConfig{ResponseMimeType: "application/json"},
	}

	gResp, err := c.generateContent(ctx, c.cfg.StatsModel, body)
	if err != nil {
		return nil, err
	}

	text := firstText(gResp)
	if text == "" {
		return nil, types.NewError(types.ErrDecodeFailed, "gemini stats response contained no text part")
	}

	stats, err := decodeStats(text)
	if err != nil {
		return nil, err
	}
	c.logger.Info("stats generated",
		zap.String("name", stats.Name),
		zap.Int("hp", stats.HP),
		zap.Int("atk", stats.ATK),
		zap.Int("def", stats.DEF),
	)
	return stats, nil
}

// GenerateImage synthesizes the robot concept image from the visual
// description and returns it as base64-encoded PNG data.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (string, error) {
	body := geminiRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{{Text: prompt + imageInstruction}},
		}},
		GenerationConfig: &geminiGenConfig{ResponseModalities: []string{"IMAGE"}},
	}

	gResp, err := c.generateContent(ctx, c.cfg.ImageModel, body)
	if err != nil {
		return "", err
	}

	for _, candidate := range gResp.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && part.InlineData.Data != "" {
				return part.InlineData.Data, nil
			}
		}
	}
	return "", types.NewError(types.ErrDecodeFailed, "no image data returned from gemini")
}

func firstText(resp *geminiResponse) string {
	for _, candidate := range resp.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				return part.Text
			}
		}
	}
	return ""
}
