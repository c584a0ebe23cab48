package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/proposal-engine/money"
	"github.com/warp/proposal-engine/plan"
)

// =============================================================================
// GEMINI PROVIDER
// =============================================================================

const (
	DefaultGeminiModel   = "gemini-2.5-flash"
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	defaultTimeout       = 30 * time.Second
)

// GeminiProvider asks Gemini for a suggestion using a JSON response schema.
type GeminiProvider struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// GeminiConfig configures a GeminiProvider. Empty fields use defaults.
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

func NewGeminiProvider(cfg GeminiConfig) *GeminiProvider {
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGeminiBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &GeminiProvider{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	ResponseMimeType string       `json:"responseMimeType"`
	ResponseSchema   geminiSchema `json:"responseSchema"`
}

type geminiSchema struct {
	Type        string                  `json:"type"`
	Description string                  `json:"description,omitempty"`
	Properties  map[string]geminiSchema `json:"properties,omitempty"`
	Required    []string                `json:"required,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

type geminiErrorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

var suggestionSchema = geminiSchema{
	Type: "OBJECT",
	Properties: map[string]geminiSchema{
		"suggestedDiscountPercentage": {
			Type:        "NUMBER",
			Description: "O percentual de desconto sugerido. Exemplo: 5.5 para 5.5%.",
		},
		"rationale": {
			Type:        "STRING",
			Description: "Uma explicação clara para o desconto, destacando os benefícios financeiros (ex: maior entrada, redução do financiamento).",
		},
		"newNegotiatedValue": {
			Type:        "NUMBER",
			Description: "O novo valor total do imóvel após aplicar o desconto sugerido sobre o valor total da proposta do cliente.",
		},
	},
	Required: []string{"suggestedDiscountPercentage", "rationale", "newNegotiatedValue"},
}

// Suggest implements Provider.
func (g *GeminiProvider) Suggest(ctx context.Context, req Request) (Suggestion, error) {
	if g.apiKey == "" {
		return Suggestion{}, ErrMissingCredentials
	}
	prompt, err := BuildPrompt(req)
	if err != nil {
		return Suggestion{}, err
	}

	body := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: geminiGenerationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   suggestionSchema,
		},
	}
	jsonData, err := json.Marshal(body)
	if err != nil {
		return Suggestion{}, err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.baseURL, g.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return Suggestion{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return Suggestion{}, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Suggestion{}, fmt.Errorf("%w: reading response: %v", ErrTransport, err)
	}

	if resp.StatusCode != http.StatusOK {
		pe := &ProviderError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var eb geminiErrorBody
		if json.Unmarshal(respBody, &eb) == nil && eb.Error.Message != "" {
			pe.Details = eb.Error.Message
		}
		return Suggestion{}, pe
	}

	var gr geminiResponse
	if err := json.Unmarshal(respBody, &gr); err != nil {
		return Suggestion{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return Suggestion{}, fmt.Errorf("%w: no candidates", ErrInvalidResponse)
	}

	return ParseSuggestion([]byte(gr.Candidates[0].Content.Parts[0].Text))
}

// =============================================================================
// PROMPT
// =============================================================================

const promptTemplate = `Analise a seguinte proposta de pagamento para um imóvel e sugira um desconto máximo justificável.

**Contexto:**
Você é um analista financeiro imobiliário especialista. Avalie a proposta de pagamento do cliente em comparação com o plano de pagamento padrão da empresa (Valor Tabela). A sugestão de desconto deve se basear estritamente nos benefícios financeiros que a proposta oferece à empresa. Um fluxo de caixa melhor (maior entrada, menor valor financiado, prazo mais curto) justifica um desconto maior.

**Detalhes do Imóvel:**
- Empreendimento: %s
- Unidade: %s
- Área: %s

**Plano Padrão (Valor Tabela):**
%s

**Proposta do Cliente (Valor Negociado):**
%s

**Sua Tarefa:**
Com base na comparação, determine o percentual de desconto máximo que pode ser oferecido sobre o "Valor Total" da proposta do cliente. Forneça uma justificativa clara e concisa. A resposta DEVE estar no formato JSON.`

// BuildPrompt renders the analysis prompt for a request.
func BuildPrompt(req Request) (string, error) {
	unit, err := req.Unit.ToUnit()
	if err != nil {
		return "", err
	}
	proposal, err := req.ClientProposal.ToPlan()
	if err != nil {
		return "", err
	}
	name := req.Property.Name
	if name == "" {
		name = req.Property.ID
	}

	return fmt.Sprintf(promptTemplate,
		name,
		unit.ID,
		money.FormatArea(unit.Area),
		describePlan(unit.TablePlan),
		describePlan(proposal),
	), nil
}

func describePlan(p plan.PaymentPlan) string {
	share := decimal.Zero
	if p.Total.IsPositive() {
		share = p.Financed.Div(p.Total).Mul(decimal.NewFromInt(100))
	}
	lines := []string{
		"- Valor Total: " + money.FormatBRL(p.Total),
		"- Ato: " + money.FormatBRL(p.DownPayment),
		fmt.Sprintf("- Parcelas: %dx de %s", p.Installments.Count, money.FormatBRL(p.Installments.Value)),
		fmt.Sprintf("- Anual: %dx de %s", p.Annual.Count, money.FormatBRL(p.Annual.Value)),
		"- Única: " + money.FormatBRL(p.Balloon),
		fmt.Sprintf("- Valor Financiado: %s (%s)", money.FormatBRL(p.Financed), money.FormatPercent(share)),
	}
	return strings.Join(lines, "\n")
}
