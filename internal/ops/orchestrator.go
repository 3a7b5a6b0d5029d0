package ops

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/backseat/internal/capture"
	"github.com/hpungsan/backseat/internal/config"
	"github.com/hpungsan/backseat/internal/errors"
	"github.com/hpungsan/backseat/internal/extract"
	"github.com/hpungsan/backseat/internal/profile"
	"github.com/hpungsan/backseat/internal/prompt"
	"github.com/hpungsan/backseat/internal/session"
)

// Orchestrator ties capture, OCR, extraction, prompt composition and inference
// together. Every operation makes at most one external call per adapter and
// never retries; on failure the session is left as it was.
type Orchestrator struct {
	Store     ProfileStore
	Config    *config.Config
	Capturer  capture.Capturer
	OCR       Recognizer
	Inference Generator
	Extractor *extract.Extractor
	Logger    *zap.Logger
}

// AnalyzeOutput contains the result of the AnalyzeScreen operation.
type AnalyzeOutput struct {
	Text    string `json:"ocrText"`
	Length  int    `json:"length"`
	Profile string `json:"profile"`
}

// AskOutput contains the result of the AskQuestion operation.
type AskOutput struct {
	Response string `json:"response"`
	HTML     string `json:"html"`
	Profile  string `json:"profile"`
}

// ExtractOutput contains the result of the ExtractPage operation.
type ExtractOutput struct {
	FullText     string `json:"fullText"`
	FilteredText string `json:"filteredDOMText"`
	Length       int    `json:"length"`
	Profile      string `json:"profile"`
}

func (o *Orchestrator) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

func (o *Orchestrator) extractor() *extract.Extractor {
	if o.Extractor == nil {
		return extract.New(o.logger(), 0)
	}
	return o.Extractor
}

// AnalyzeScreen captures the screen, runs OCR with the session's current
// profile and stores the text as the session's last recognized text.
func (o *Orchestrator) AnalyzeScreen(ctx context.Context, sess *session.Session) (out *AnalyzeOutput, err error) {
	defer o.recordFailure(sess, &err)

	p, err := GetCurrentProfile(ctx, o.Store, o.Config, sess)
	if err != nil {
		return nil, err
	}
	if p.OCRURL == "" {
		return nil, errors.NewConfiguration("ocrUrl", fmt.Sprintf("profile %q has no OCR URL", p.Name))
	}

	img, err := o.Capturer.Capture(ctx)
	if err != nil {
		return nil, errors.Wrap(err)
	}

	text, err := o.OCR.Recognize(ctx, p.OCRURL, img.DataURL(), p.OCRLanguages)
	if err != nil {
		return nil, err
	}

	sess.SetLastRecognizedText(text)
	length := profile.CountChars(text)
	sess.AddTurn(session.RoleAssistant, fmt.Sprintf("OCR complete (%d characters)", length))

	o.logger().Info("screen analyzed",
		zap.String("session", sess.ID),
		zap.String("profile", p.Name),
		zap.Int("chars", length),
	)
	return &AnalyzeOutput{Text: text, Length: length, Profile: p.Name}, nil
}

// AskQuestion sends the session's last recognized text and question to the
// current profile's model.
func (o *Orchestrator) AskQuestion(ctx context.Context, sess *session.Session, question string) (out *AskOutput, err error) {
	defer o.recordFailure(sess, &err)

	p, err := GetCurrentProfile(ctx, o.Store, o.Config, sess)
	if err != nil {
		return nil, err
	}
	return o.ask(ctx, sess, p, sess.LastRecognizedText(), question)
}

// AskQuestionWith asks about text instead of the session's last recognized
// text. text becomes the last recognized text only once the model answered.
func (o *Orchestrator) AskQuestionWith(ctx context.Context, sess *session.Session, text, question string) (out *AskOutput, err error) {
	defer o.recordFailure(sess, &err)

	p, err := GetCurrentProfile(ctx, o.Store, o.Config, sess)
	if err != nil {
		return nil, err
	}
	out, err = o.ask(ctx, sess, p, text, question)
	if err != nil {
		return nil, err
	}
	sess.SetLastRecognizedText(text)
	return out, nil
}

// AskAboutPage asks about the filtered text of a page instead of OCR text.
func (o *Orchestrator) AskAboutPage(ctx context.Context, sess *session.Session, html, question string) (out *AskOutput, err error) {
	defer o.recordFailure(sess, &err)

	p, err := GetCurrentProfile(ctx, o.Store, o.Config, sess)
	if err != nil {
		return nil, err
	}
	res, err := o.extractor().ExtractHTML(html, p.Filters)
	if err != nil {
		return nil, err
	}
	return o.ask(ctx, sess, p, res.FilteredText, question)
}

// ask runs one inference with the already resolved profile p.
func (o *Orchestrator) ask(ctx context.Context, sess *session.Session, p *profile.Profile, content, question string) (*AskOutput, error) {
	question = strings.TrimSpace(question)
	if question != "" {
		sess.AddTurn(session.RoleUser, question)
	}

	composed := prompt.Compose(p.SystemPrompt, content, question)
	response, err := o.Inference.Generate(ctx, p.InferenceURL, p.InferenceModel, composed)
	if err != nil {
		return nil, err
	}

	sess.AddTurn(session.RoleAssistant, response)
	o.logger().Info("question answered",
		zap.String("session", sess.ID),
		zap.String("profile", p.Name),
		zap.String("model", p.InferenceModel),
		zap.Int("prompt_chars", profile.CountChars(composed)),
	)
	return &AskOutput{Response: response, HTML: RenderAnswer(response), Profile: p.Name}, nil
}

// ExtractPage returns the full and filtered text of html using the current
// profile's filters.
func (o *Orchestrator) ExtractPage(ctx context.Context, sess *session.Session, html string) (*ExtractOutput, error) {
	p, err := GetCurrentProfile(ctx, o.Store, o.Config, sess)
	if err != nil {
		return nil, err
	}

	res, err := o.extractor().ExtractHTML(html, p.Filters)
	if err != nil {
		return nil, err
	}
	return &ExtractOutput{
		FullText:     res.FullText,
		FilteredText: res.FilteredText,
		Length:       profile.CountChars(res.FilteredText),
		Profile:      p.Name,
	}, nil
}

// recordFailure appends an error turn to the transcript when *errp is set.
func (o *Orchestrator) recordFailure(sess *session.Session, errp *error) {
	if *errp == nil || sess == nil {
		return
	}
	bErr := errors.Wrap(*errp)
	*errp = bErr
	sess.AddTurn(session.RoleError, bErr.Message)
	o.logger().Warn("operation failed",
		zap.String("session", sess.ID),
		zap.String("code", string(bErr.Code)),
		zap.String("error", bErr.Message),
	)
}
