package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"google.golang.org/genai"

	"github.com/erazemk/remarket/internal/metrics"
	"github.com/erazemk/remarket/internal/model"
)

// Default model names.
const (
	DefaultAnalysisModel   = "gemini-2.5-flash"
	DefaultExtractionModel = "gemini-2.5-pro"
)

const (
	analyzePrompt = "Analise visualmente este item de desapego. Forneça um título de venda, " +
		"uma descrição detalhada mas curta, um preço sugerido em Reais (número) e a categoria mais adequada."
	imagePrompt = "Liste todos os itens à venda visíveis nesta imagem (fotos de objetos ou uma lista impressa). " +
		"Para cada item retorne title, description, price em Reais, category e quantity."
	tablePrompt = "Converta estes dados de planilha para o formato de inventário. " +
		"Para cada linha retorne title, description, price em Reais, category e quantity: "
)

// generator is the part of the genai client used here.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiConfig selects the models used for each task.
type GeminiConfig struct {
	APIKey          string
	AnalysisModel   string
	ExtractionModel string
}

// Gemini implements Extractor with the Gemini API.
type Gemini struct {
	models          generator
	analysisModel   string
	extractionModel string
}

// NewGemini creates a Gemini API client.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}
	return newGemini(client.Models, cfg), nil
}

func newGemini(models generator, cfg GeminiConfig) *Gemini {
	if cfg.AnalysisModel == "" {
		cfg.AnalysisModel = DefaultAnalysisModel
	}
	if cfg.ExtractionModel == "" {
		cfg.ExtractionModel = DefaultExtractionModel
	}
	return &Gemini{models: models, analysisModel: cfg.AnalysisModel, extractionModel: cfg.ExtractionModel}
}

var suggestionSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"title":          {Type: genai.TypeString},
		"description":    {Type: genai.TypeString},
		"suggestedPrice": {Type: genai.TypeNumber},
		"category":       {Type: genai.TypeString},
	},
	Required: []string{"title", "description", "suggestedPrice", "category"},
}

var draftsSchema = &genai.Schema{
	Type: genai.TypeArray,
	Items: &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"title":       {Type: genai.TypeString, Description: "O nome do produto"},
			"description": {Type: genai.TypeString, Description: "Uma breve descrição"},
			"price":       {Type: genai.TypeNumber, Description: "Preço em Reais"},
			"category":    {Type: genai.TypeString, Description: "Categoria do produto"},
			"quantity":    {Type: genai.TypeInteger, Description: "Quantidade em estoque"},
			"location":    {Type: genai.TypeString},
			"color":       {Type: genai.TypeString},
			"brand":       {Type: genai.TypeString},
		},
		Required: []string{"title", "price", "category"},
	},
}

func (g *Gemini) generate(ctx context.Context, kind, modelName string, parts []*genai.Part, schema *genai.Schema) (string, error) {
	resp, err := g.models.GenerateContent(ctx, modelName,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)},
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   schema,
		},
	)
	if err != nil {
		metrics.ExtractionsTotal.WithLabelValues(kind, "error").Inc()
		return "", fmt.Errorf("calling %s: %w", modelName, err)
	}
	return resp.Text(), nil
}

// AnalyzeImage suggests form values for one photo. Output that cannot be
// parsed yields the default suggestion instead of an error.
func (g *Gemini) AnalyzeImage(ctx context.Context, data []byte, mime string) (model.Suggestion, error) {
	text, err := g.generate(ctx, "analyze", g.analysisModel, []*genai.Part{
		genai.NewPartFromBytes(data, mime),
		genai.NewPartFromText(analyzePrompt),
	}, suggestionSchema)
	if err != nil {
		return model.Suggestion{}, err
	}

	s, err := ParseSuggestion(text)
	if err != nil {
		metrics.ExtractionsTotal.WithLabelValues("analyze", "malformed").Inc()
		slog.Warn("unparseable photo analysis, using defaults", "error", err)
		return model.DefaultSuggestion(), nil
	}
	metrics.ExtractionsTotal.WithLabelValues("analyze", "ok").Inc()
	return s, nil
}

// ExtractImage lists the items found in a photo.
func (g *Gemini) ExtractImage(ctx context.Context, data []byte, mime string) ([]model.Draft, error) {
	text, err := g.generate(ctx, "image", g.extractionModel, []*genai.Part{
		genai.NewPartFromBytes(data, mime),
		genai.NewPartFromText(imagePrompt),
	}, draftsSchema)
	if err != nil {
		return nil, err
	}
	return g.drafts("image", text)
}

// ExtractTable maps spreadsheet rows to drafts.
func (g *Gemini) ExtractTable(ctx context.Context, rows []Row) ([]model.Draft, error) {
	payload, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("encoding rows: %w", err)
	}

	text, err := g.generate(ctx, "table", g.extractionModel, []*genai.Part{
		genai.NewPartFromText(tablePrompt + string(payload)),
	}, draftsSchema)
	if err != nil {
		return nil, err
	}
	return g.drafts("table", text)
}

func (g *Gemini) drafts(kind, text string) ([]model.Draft, error) {
	drafts, err := ParseDrafts(text)
	if err != nil {
		metrics.ExtractionsTotal.WithLabelValues(kind, "malformed").Inc()
		return drafts, err
	}
	metrics.ExtractionsTotal.WithLabelValues(kind, "ok").Inc()
	return drafts, nil
}
