package generator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/hpungsan/chatbox/internal/config"
	"github.com/hpungsan/chatbox/internal/errors"
	"github.com/hpungsan/chatbox/internal/project"
)

// Image request constants.
const (
	SchematicMIMEType    = "image/png"
	SchematicAspectRatio = "16:9"
	SchematicImageCount  = 1
)

// Generator turns a free-text prompt into a complete project.
type Generator interface {
	Generate(ctx context.Context, prompt string) (*project.Project, error)
}

// ImageOptions configures an image request.
type ImageOptions struct {
	Count       int
	MIMEType    string
	AspectRatio string
}

// Image is one generated image as raw bytes.
type Image struct {
	Data     []byte
	MIMEType string
}

// Backend is the remote model API used by the Orchestrator.
type Backend interface {
	// GenerateJSON returns model text constrained to the given response schema.
	GenerateJSON(ctx context.Context, model, instruction string, schema *genai.Schema) (string, error)

	// GenerateImages returns the generated images, possibly none.
	GenerateImages(ctx context.Context, model, instruction string, opts ImageOptions) ([]Image, error)
}

// Orchestrator runs the two generation stages in sequence:
// structured project text first, then a schematic image built from it.
type Orchestrator struct {
	backend    Backend
	textModel  string
	imageModel string
	logger     *zap.Logger
}

// NewOrchestrator creates an Orchestrator using the models named in cfg.
func NewOrchestrator(backend Backend, cfg *config.Config, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	textModel, imageModel := config.DefaultTextModel, config.DefaultImageModel
	if cfg != nil {
		if cfg.TextModel != "" {
			textModel = cfg.TextModel
		}
		if cfg.ImageModel != "" {
			imageModel = cfg.ImageModel
		}
	}
	return &Orchestrator{
		backend:    backend,
		textModel:  textModel,
		imageModel: imageModel,
		logger:     logger.Named("generator"),
	}
}

// Generate produces a Project or fails as a whole. A missing image surfaces as
// IMAGE_ABSENT with its own message; every other failure is reported as the
// generic GENERATION_FAILED error and the cause is only logged.
func (o *Orchestrator) Generate(ctx context.Context, prompt string) (p *project.Project, err error) {
	start := time.Now()
	log := o.logger.With(zap.Int("prompt_chars", len(prompt)))

	defer func() {
		if r := recover(); r != nil {
			p, err = nil, fmt.Errorf("panic during generation: %v", r)
		}
		if err == nil {
			log.Info("project generated",
				zap.String("project", p.ProjectName),
				zap.Int("bom_items", len(p.BOM)),
				zap.Duration("elapsed", time.Since(start)))
			return
		}
		if errors.Is(err, errors.ErrImageAbsent) {
			log.Warn("image stage returned no image", zap.Duration("elapsed", time.Since(start)))
			return
		}
		log.Error("project generation failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		err = errors.NewGenerationFailed(err)
	}()

	draft, err := o.generateDraft(ctx, prompt)
	if err != nil {
		return nil, err
	}

	png, err := o.generateSchematic(ctx, draft)
	if err != nil {
		return nil, err
	}

	return draft.WithImage(project.EncodeSchematic(png)), nil
}

// generateDraft runs the structured text stage.
func (o *Orchestrator) generateDraft(ctx context.Context, prompt string) (*project.Draft, error) {
	text, err := o.backend.GenerateJSON(ctx, o.textModel, ProjectInstruction(prompt), ProjectSchema())
	if err != nil {
		return nil, fmt.Errorf("text stage: %w", err)
	}
	o.logger.Debug("text stage complete", zap.String("model", o.textModel), zap.Int("response_chars", len(text)))
	return project.ParseDraft(text)
}

// generateSchematic runs the image stage and returns the raw PNG bytes.
func (o *Orchestrator) generateSchematic(ctx context.Context, draft *project.Draft) ([]byte, error) {
	images, err := o.backend.GenerateImages(ctx, o.imageModel,
		SchematicInstruction(draft.ProjectName, draft.SchematicDescription),
		ImageOptions{
			Count:       SchematicImageCount,
			MIMEType:    SchematicMIMEType,
			AspectRatio: SchematicAspectRatio,
		})
	if err != nil {
		return nil, fmt.Errorf("image stage: %w", err)
	}
	if len(images) == 0 || len(images[0].Data) == 0 {
		return nil, errors.NewImageAbsent()
	}
	o.logger.Debug("image stage complete", zap.String("model", o.imageModel), zap.Int("image_bytes", len(images[0].Data)))
	return images[0].Data, nil
}

// ProjectSchema is the response schema for the text stage.
func ProjectSchema() *genai.Schema {
	str := func() *genai.Schema { return &genai.Schema{Type: genai.TypeString} }
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"projectName": str(),
			"description": str(),
			"bom": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"component":   str(),
						"quantity":    {Type: genai.TypeInteger},
						"description": str(),
					},
					Required: project.RequiredBOMFields(),
				},
			},
			"arduinoCode":          str(),
			"schematicDescription": str(),
		},
		Required: project.RequiredFields(),
	}
}
