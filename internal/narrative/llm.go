package narrative

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/Catker/ashare-llm-analyst/internal/analysis/report"
	"github.com/Catker/ashare-llm-analyst/internal/analysis/technical"
	"github.com/Catker/ashare-llm-analyst/internal/config"
	"github.com/Catker/ashare-llm-analyst/pkg/logger"
	"github.com/Catker/ashare-llm-analyst/pkg/models"
)

// recentRows число последних свечей в запросе
const recentRows = 10

// ErrEmptyResponse модель не вернула ни одного раздела
var ErrEmptyResponse = errors.New("пустой ответ модели")

const systemPrompt = `Ты аналитик фондового рынка. По данным свечей и технических индикаторов ` +
	`составь краткий анализ на русском языке. Ответь только JSON-объектом, где ключ это ` +
	`название раздела, а значение это текст раздела. Используй разделы: ` +
	`"Тренд", "Импульс", "Объем", "Поддержка и сопротивление", "Итог". ` +
	`Если данных недостаточно, верни {"` + report.StatusSection + `": "` + FailedMarker + `"}.`

// FailedMarker значение служебного раздела при отказе модели
const FailedMarker = "Анализ не выполнен"

// Client генератор аналитического текста через OpenAI-совместимый API
type Client struct {
	model  string
	client *openai.Client
}

// NewClient создает клиент LLM; base_url позволяет подключить совместимый сервис
func NewClient(cfg config.LLMConfig) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Client{
		model:  cfg.Model,
		client: openai.NewClientWithConfig(oc),
	}
}

// Generate запрашивает анализ и возвращает разделы в порядке ответа модели
func (c *Client) Generate(ctx context.Context, inst models.Instrument, series models.Series, table *technical.Table) ([]report.Section, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildPrompt(inst, series, table)},
		},
		Temperature: 0.3,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("llm: статус %d: %s", apiErr.HTTPStatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("llm: запрос: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	sections, err := parseSections(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	logger.Debug("Получен аналитический текст",
		zap.String("symbol", inst.Code),
		zap.Int("sections", len(sections)),
		zap.Int("tokens", resp.Usage.TotalTokens))
	return sections, nil
}

// parseSections разбирает JSON-объект с сохранением порядка ключей
func parseSections(content string) ([]report.Section, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	dec := json.NewDecoder(strings.NewReader(content))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("llm: разбор разделов: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("llm: ожидался JSON-объект, получено %v", tok)
	}

	var sections []report.Section
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("llm: разбор разделов: %w", err)
		}
		key, _ := keyTok.(string)

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("llm: разбор раздела %q: %w", key, err)
		}
		sections = append(sections, report.Section{Title: key, Content: sectionText(value)})
	}

	if len(sections) == 0 {
		return nil, ErrEmptyResponse
	}
	return sections, nil
}

// sectionText принимает строку, а прочие значения оставляет как JSON
func sectionText(v json.RawMessage) string {
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	return string(v)
}

// buildPrompt описывает последние свечи и значения индикаторов
func buildPrompt(inst models.Instrument, series models.Series, table *technical.Table) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Инструмент: %s (%s)\n", inst.Label(), inst.Code)

	b.WriteString("Последние свечи (дата, открытие, максимум, минимум, закрытие, объем):\n")
	candles := series.Candles
	if len(candles) > recentRows {
		candles = candles[len(candles)-recentRows:]
	}
	for _, c := range candles {
		fmt.Fprintf(&b, "%s %.2f %.2f %.2f %.2f %.0f\n",
			c.Time.Format("2006-01-02"), c.Open, c.High, c.Low, c.Close, c.Volume)
	}

	if table != nil {
		b.WriteString("Индикаторы на последнюю дату:\n")
		for _, name := range table.Names() {
			v, err := table.Last(name)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			fmt.Fprintf(&b, "%s=%.4f\n", name, v)
		}
	}
	return b.String()
}
