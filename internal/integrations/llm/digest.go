// Package llm writes a short natural-language digest of a fare search.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"flyshark/internal/config"
	"flyshark/internal/domain"
	"flyshark/internal/fares"
	"flyshark/internal/httpx"
	"flyshark/internal/report"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicModel = "claude-sonnet-4-5-20250929"
const defaultOpenAIModel = "gpt-4o-mini"
const defaultOpenAIURL = "https://api.openai.com/v1/chat/completions"

// Rows beyond this are left out of the prompt.
const maxPromptRows = 12

type Usage struct {
	InputTokens              int64
	OutputTokens             int64
	CacheCreationInputTokens int64
	CacheReadInputTokens     int64
}

func (u Usage) TotalTokens() int64 {
	return u.InputTokens + u.OutputTokens
}

func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CacheCreationInputTokens += other.CacheCreationInputTokens
	u.CacheReadInputTokens += other.CacheReadInputTokens
}

// DigestInput is what a digest is written about. Either Rows or
// Combinations is usually set, not both.
type DigestInput struct {
	Title        string
	Currency     string
	Rows         []domain.ClassifiedOffer
	Combinations []domain.CombinedOffer
}

type Digester struct {
	provider string
	model    string
	apiKey   string

	anthropicBaseURL string
	openAIURL        string
	httpClient       *http.Client
}

// NewDigester returns nil when no provider is configured.
func NewDigester(cfg config.Config) *Digester {
	d := &Digester{provider: cfg.LLMProvider, model: cfg.LLMModel, openAIURL: defaultOpenAIURL, httpClient: httpx.ExternalHTTPClient()}
	switch cfg.LLMProvider {
	case "anthropic":
		d.apiKey = cfg.AnthropicAPIKey
		if d.model == "" {
			d.model = defaultAnthropicModel
		}
	case "openai":
		d.apiKey = cfg.OpenAIAPIKey
		if d.model == "" {
			d.model = defaultOpenAIModel
		}
	default:
		return nil
	}
	return d
}

func (d *Digester) Provider() string { return d.provider }

// Digest asks the model for a two-sentence summary. Callers treat any
// error as "no digest".
func (d *Digester) Digest(ctx context.Context, in DigestInput) (string, Usage, error) {
	if len(in.Rows) == 0 && len(in.Combinations) == 0 {
		return "", Usage{}, fmt.Errorf("nothing to summarize")
	}
	system, user := BuildDigestPrompts(in)
	log.Printf("llm digest start provider=%s model=%s rows=%d combinations=%d prompt_chars=%d",
		d.provider, d.model, len(in.Rows), len(in.Combinations), len(user))

	var (
		text  string
		usage Usage
		err   error
	)
	switch d.provider {
	case "anthropic":
		text, usage, err = d.callAnthropic(ctx, system, user)
	case "openai":
		text, usage, err = d.callOpenAI(ctx, system, user)
	default:
		return "", Usage{}, fmt.Errorf("unsupported llm provider %q", d.provider)
	}
	if err != nil {
		return "", usage, err
	}
	text = cleanDigest(text)
	if text == "" {
		return "", usage, fmt.Errorf("empty digest")
	}
	return text, usage, nil
}

func BuildDigestPrompts(in DigestInput) (string, string) {
	system := strings.TrimSpace(`
You summarize flight fare search results for a traveller.
Write exactly two short sentences in plain text, no lists and no markdown.
Mention the single best option with its date, carrier and price, and say
whether prices look low or high compared with history using the labels given.
Never invent fares that are not in the data.`)

	currency := in.Currency
	if currency == "" {
		currency = "BRL"
	}

	var b strings.Builder
	if in.Title != "" {
		fmt.Fprintf(&b, "Search: %s\n", in.Title)
	}
	fmt.Fprintf(&b, "Prices in %s. Labels: Opportunity < Cheap < Average < Expensive relative to past searches.\n", currency)

	if len(in.Rows) > 0 {
		rows := append([]domain.ClassifiedOffer(nil), in.Rows...)
		fares.SortRows(rows)
		fmt.Fprintf(&b, "\nOffers (%d total, cheapest first):\n", len(rows))
		for i, r := range rows {
			if i == maxPromptRows {
				fmt.Fprintf(&b, "... %d more\n", len(rows)-i)
				break
			}
			back := ""
			if r.ReturnDate != nil {
				back = " back " + r.ReturnDate.Format(domain.DateLayout)
			}
			fmt.Fprintf(&b, "- %s-%s out %s%s, %s, %s, %s, %d stops, %s\n",
				r.Origin, r.Destination, r.DepartureDate.Format(domain.DateLayout), back,
				r.Carrier, report.FormatPrice(r.Price), r.Label.Plain(), r.Connections, r.Duration)
		}
	}

	if len(in.Combinations) > 0 {
		combos := append([]domain.CombinedOffer(nil), in.Combinations...)
		fares.SortCombinations(combos)
		fmt.Fprintf(&b, "\nOutbound and return pairs (%d total, cheapest first):\n", len(combos))
		for i, c := range combos {
			if i == maxPromptRows {
				fmt.Fprintf(&b, "... %d more\n", len(combos)-i)
				break
			}
			fmt.Fprintf(&b, "- out %s %s %s (%s), back %s %s %s (%s), %d days, total %s\n",
				c.Outbound.DepartureDate.Format(domain.DateLayout), c.Outbound.Carrier,
				report.FormatPrice(c.Outbound.Price), c.Outbound.Label.Plain(),
				c.Return.DepartureDate.Format(domain.DateLayout), c.Return.Carrier,
				report.FormatPrice(c.Return.Price), c.Return.Label.Plain(),
				c.StayDays(), report.FormatPrice(c.TotalPrice))
		}
	}
	return system, b.String()
}

func cleanDigest(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// --- Anthropic ---

func (d *Digester) callAnthropic(ctx context.Context, systemPrompt, userPrompt string) (string, Usage, error) {
	opts := []option.RequestOption{option.WithAPIKey(d.apiKey), option.WithHTTPClient(d.httpClient)}
	if d.anthropicBaseURL != "" {
		opts = append(opts, option.WithBaseURL(d.anthropicBaseURL))
	}
	client := anthropic.NewClient(opts...)

	message, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(d.model),
		MaxTokens: 512,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		log.Printf("llm anthropic error: %v", err)
		return "", Usage{}, fmt.Errorf("Anthropic API error: %w", err)
	}
	usage := Usage{
		InputTokens:              message.Usage.InputTokens,
		OutputTokens:             message.Usage.OutputTokens,
		CacheCreationInputTokens: message.Usage.CacheCreationInputTokens,
		CacheReadInputTokens:     message.Usage.CacheReadInputTokens,
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			log.Printf("llm anthropic response size=%d tokens_in=%d tokens_out=%d", len(block.Text), usage.InputTokens, usage.OutputTokens)
			return block.Text, usage, nil
		}
	}
	return "", usage, fmt.Errorf("no text content in Anthropic response")
}

// --- OpenAI ---

type openAIRequest struct {
	Model    string          `json:"model"`
	Messages []openAIMessage `json:"messages"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (d *Digester) callOpenAI(ctx context.Context, systemPrompt, userPrompt string) (string, Usage, error) {
	bodyBytes, err := json.Marshal(openAIRequest{
		Model: d.model,
		Messages: []openAIMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	})
	if err != nil {
		return "", Usage{}, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.openAIURL, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", Usage{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+d.apiKey)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		log.Printf("llm openai error: %v", err)
		return "", Usage{}, fmt.Errorf("OpenAI API error: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", Usage{}, fmt.Errorf("reading response: %w", err)
	}

	var parsed openAIResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", Usage{}, fmt.Errorf("parsing OpenAI response: %w", err)
	}
	if parsed.Error != nil {
		log.Printf("llm openai api error: %s", parsed.Error.Message)
		return "", Usage{}, fmt.Errorf("OpenAI API error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", Usage{}, fmt.Errorf("no choices in OpenAI response")
	}

	usage := Usage{}
	if parsed.Usage != nil {
		usage.InputTokens = parsed.Usage.PromptTokens
		usage.OutputTokens = parsed.Usage.CompletionTokens
	}
	log.Printf("llm openai response size=%d tokens_in=%d tokens_out=%d", len(parsed.Choices[0].Message.Content), usage.InputTokens, usage.OutputTokens)
	return parsed.Choices[0].Message.Content, usage, nil
}
