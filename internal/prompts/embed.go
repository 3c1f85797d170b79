package prompts

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/aconcagua-finder/TG-Bot-Pocket-Consultant/internal/entities"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

type Texts struct {
	Welcome               string `yaml:"welcome" validate:"required"`
	MainMenu              string `yaml:"main_menu" validate:"required"`
	NextAction            string `yaml:"next_action" validate:"required"`
	IdleHint              string `yaml:"idle_hint" validate:"required"`
	FileWithoutMode       string `yaml:"file_without_mode" validate:"required"`
	QuestionLimit         string `yaml:"question_limit" validate:"required"`
	DocumentLimit         string `yaml:"document_limit" validate:"required"`
	AskPrompt             string `yaml:"ask_prompt" validate:"required"`
	AnalyzePrompt         string `yaml:"analyze_prompt" validate:"required"`
	EditPrompt            string `yaml:"edit_prompt" validate:"required"`
	CreatePrompt          string `yaml:"create_prompt" validate:"required"`
	Info                  string `yaml:"info" validate:"required"`
	WaitingQuestion       string `yaml:"waiting_question" validate:"required"`
	WaitingAnalyze        string `yaml:"waiting_analyze" validate:"required"`
	WaitingEdit           string `yaml:"waiting_edit" validate:"required"`
	WaitingCreate         string `yaml:"waiting_create" validate:"required"`
	FileTooLarge          string `yaml:"file_too_large" validate:"required"`
	UnsupportedFormat     string `yaml:"unsupported_format" validate:"required"`
	PDFNotEditable        string `yaml:"pdf_not_editable" validate:"required"`
	Unreadable            string `yaml:"unreadable" validate:"required"`
	TooShort              string `yaml:"too_short" validate:"required"`
	EmptyInstructions     string `yaml:"empty_instructions" validate:"required"`
	DownloadFailed        string `yaml:"download_failed" validate:"required"`
	GenericError          string `yaml:"generic_error" validate:"required"`
	RetryHint             string `yaml:"retry_hint" validate:"required"`
	QuestionFooter        string `yaml:"question_footer" validate:"required"`
	AnalysisHeader        string `yaml:"analysis_header" validate:"required"`
	AnalysisFooter        string `yaml:"analysis_footer" validate:"required"`
	EditedCaption         string `yaml:"edited_caption" validate:"required"`
	EditedFallbackHeader  string `yaml:"edited_fallback_header" validate:"required"`
	CreatedCaption        string `yaml:"created_caption" validate:"required"`
	CreatedFallbackHeader string `yaml:"created_fallback_header" validate:"required"`
	FileFailedNote        string `yaml:"file_failed_note" validate:"required"`
	EditedDisclaimer      string `yaml:"edited_disclaimer" validate:"required"`
	CreatedDisclaimer     string `yaml:"created_disclaimer" validate:"required"`
}

type Directives struct {
	Question string `yaml:"question" validate:"required"`
	Analyze  string `yaml:"analyze" validate:"required"`
	Edit     string `yaml:"edit" validate:"required"`
	Create   string `yaml:"create" validate:"required"`
}

type Instructions struct {
	Analyze string `yaml:"analyze" validate:"required"`
	Edit    string `yaml:"edit" validate:"required"`
	Create  string `yaml:"create" validate:"required"`
}

type Apologies struct {
	Question string `yaml:"question" validate:"required"`
	Document string `yaml:"document" validate:"required"`
}

// Catalog holds every user-facing string and model directive.
type Catalog struct {
	Buttons      map[string]string `yaml:"buttons" validate:"required"`
	Capabilities map[string]string `yaml:"capabilities" validate:"required"`
	Texts        Texts             `yaml:"texts"`
	System       Directives        `yaml:"system"`
	Instructions Instructions      `yaml:"instructions"`
	Apologies    Apologies         `yaml:"apologies"`
}

func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse prompt catalog: %w", err)
	}
	if err := validator.New().Struct(&c); err != nil {
		return nil, fmt.Errorf("invalid prompt catalog: %w", err)
	}
	for _, a := range entities.VariantFull.Actions() {
		if c.Buttons[string(a)] == "" {
			return nil, fmt.Errorf("invalid prompt catalog: missing button %q", a)
		}
	}
	if c.Buttons[string(entities.ActionBackToMain)] == "" {
		return nil, fmt.Errorf("invalid prompt catalog: missing button %q", entities.ActionBackToMain)
	}
	return &c, nil
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the embedded catalog. It panics if the embedded file is
// invalid, which the package tests guard against.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Parse(catalogYAML)
		if err != nil {
			panic(err)
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

func (c *Catalog) Button(a entities.Action) string {
	return c.Buttons[string(a)]
}

// CapabilityList renders the bullet list of what the variant can do.
func (c *Catalog) CapabilityList(v entities.Variant) string {
	var lines []string
	for _, a := range v.Actions() {
		if line, ok := c.Capabilities[string(a)]; ok {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func (c *Catalog) Welcome(v entities.Variant) string {
	return fmt.Sprintf(c.Texts.Welcome, c.CapabilityList(v))
}

func (c *Catalog) Info(v entities.Variant, st entities.QuotaStatus) string {
	return fmt.Sprintf(c.Texts.Info,
		st.QuestionsUsed, st.QuestionLimit,
		st.DocumentsUsed, st.DocumentLimit,
		c.CapabilityList(v))
}

func (c *Catalog) QuestionLimit(limit int) string {
	return fmt.Sprintf(c.Texts.QuestionLimit, limit)
}

func (c *Catalog) DocumentLimit(limit int) string {
	return fmt.Sprintf(c.Texts.DocumentLimit, limit)
}

// ModePrompt is the text shown when the user enters an awaiting mode.
func (c *Catalog) ModePrompt(m entities.Mode, remaining int) string {
	switch m {
	case entities.ModeAwaitingQuestion:
		return fmt.Sprintf(c.Texts.AskPrompt, remaining)
	case entities.ModeAwaitingAnalyzeUpload:
		return fmt.Sprintf(c.Texts.AnalyzePrompt, remaining)
	case entities.ModeAwaitingEditUpload:
		return fmt.Sprintf(c.Texts.EditPrompt, remaining)
	case entities.ModeAwaitingCreateInstructions:
		return fmt.Sprintf(c.Texts.CreatePrompt, remaining)
	}
	return c.Texts.MainMenu
}

func (c *Catalog) Waiting(m entities.Mode) string {
	switch m {
	case entities.ModeAwaitingQuestion:
		return c.Texts.WaitingQuestion
	case entities.ModeAwaitingAnalyzeUpload:
		return c.Texts.WaitingAnalyze
	case entities.ModeAwaitingEditUpload:
		return c.Texts.WaitingEdit
	case entities.ModeAwaitingCreateInstructions:
		return c.Texts.WaitingCreate
	}
	return ""
}

func (c *Catalog) Directive(v entities.DocumentVariant) string {
	switch v {
	case entities.DocumentEdit:
		return c.System.Edit
	case entities.DocumentCreate:
		return c.System.Create
	}
	return c.System.Analyze
}

func (c *Catalog) Instruction(v entities.DocumentVariant) string {
	switch v {
	case entities.DocumentEdit:
		return c.Instructions.Edit
	case entities.DocumentCreate:
		return c.Instructions.Create
	}
	return c.Instructions.Analyze
}
