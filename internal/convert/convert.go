// Package convert turns downloaded payloads into text or structured
// values. The actual media type is sniffed from the payload, never
// trusted from the Content-Type header; the parliament site routinely
// mislabels attachments.
package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/openpatata/scrapers/internal/metrics"
)

// Converter identifiers, reported alongside every decoded payload so
// callers can tell which pipeline produced the output.
const (
	ConverterPDF  = "pdftotext"
	ConverterDoc  = "antiword"
	ConverterDocx = "docx"
	ConverterTidy = "tidy"
)

// ErrUnsupportedFormat is returned for payloads no converter handles.
var ErrUnsupportedFormat = errors.New("unsupported payload format")

// ToolError reports an external conversion tool failing or missing.
type ToolError struct {
	Tool   string
	Stderr string
	Err    error
}

func (e *ToolError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("convert: %s: %v: %s", e.Tool, e.Err, e.Stderr)
	}
	return fmt.Sprintf("convert: %s: %v", e.Tool, e.Err)
}

func (e *ToolError) Unwrap() error { return e.Err }

// Result is a decoded payload. Text converters fill Text; the docx
// converter fills Value with a structured document.
type Result struct {
	Converter string
	Text      string
	Value     map[string]any
}

// Runner executes an external tool with the given stdin and returns
// its stdout. It exists so tests can fake the tools out.
type Runner interface {
	Run(ctx context.Context, name string, args []string, stdin []byte) ([]byte, error)
}

// Decoder dispatches payloads to converters by sniffed media type.
type Decoder struct {
	runner Runner
	log    *zap.Logger
}

// New builds a Decoder that shells out to the real tools.
func New(log *zap.Logger) *Decoder {
	return NewWithRunner(execRunner{}, log)
}

// NewWithRunner builds a Decoder with a custom tool runner.
func NewWithRunner(r Runner, log *zap.Logger) *Decoder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Decoder{runner: r, log: log}
}

const docxMIME = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Decode sniffs the payload's media type and runs the matching
// converter. Unknown types return ErrUnsupportedFormat.
func (d *Decoder) Decode(ctx context.Context, payload []byte) (Result, error) {
	mtype := mimetype.Detect(payload)
	d.log.Debug("decoding payload",
		zap.String("mime", mtype.String()), zap.Int("bytes", len(payload)))

	switch {
	case mtype.Is("application/pdf"):
		text, err := d.PDFToText(ctx, payload)
		if err != nil {
			return Result{}, err
		}
		metrics.ObserveConversion(ConverterPDF)
		return Result{Converter: ConverterPDF, Text: text}, nil
	case mtype.Is("application/msword"):
		text, err := d.DocToText(ctx, payload)
		if err != nil {
			return Result{}, err
		}
		metrics.ObserveConversion(ConverterDoc)
		return Result{Converter: ConverterDoc, Text: text}, nil
	case mtype.Is(docxMIME):
		value, err := DocxToValue(payload)
		if err != nil {
			return Result{}, err
		}
		metrics.ObserveConversion(ConverterDocx)
		return Result{Converter: ConverterDocx, Value: value}, nil
	}
	return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, mtype.String())
}

// PDFToText extracts layout-preserving text from a PDF. Column
// alignment matters downstream, where attendance tables are sliced on
// runs of spaces.
func (d *Decoder) PDFToText(ctx context.Context, payload []byte) (string, error) {
	out, err := d.runner.Run(ctx, "pdftotext", []string{"-layout", "-", "-"}, payload)
	if err != nil {
		return "", toolError("pdftotext", err)
	}
	return string(out), nil
}

// DocToText extracts text from a legacy Word document. antiword will
// not read from a pipe, so the payload goes through a temp file.
func (d *Decoder) DocToText(ctx context.Context, payload []byte) (string, error) {
	tmp, err := os.CreateTemp("", "scrapers-*.doc")
	if err != nil {
		return "", fmt.Errorf("convert: stage doc payload: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		return "", fmt.Errorf("convert: stage doc payload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("convert: stage doc payload: %w", err)
	}

	out, err := d.runner.Run(ctx, "antiword", []string{"-m", "UTF-8.txt", tmp.Name()}, nil)
	if err != nil {
		return "", toolError("antiword", err)
	}
	return string(out), nil
}

// CleanMarkup pipes markup through tidy to repair the parliament
// site's unclosed tags before parsing. tidy exits 1 for mere warnings;
// only exit codes above 1 are failures.
func (d *Decoder) CleanMarkup(ctx context.Context, markup string) (string, error) {
	out, err := d.runner.Run(ctx, "tidy",
		[]string{"-q", "-utf8", "-asxhtml", "--show-warnings", "no"}, []byte(markup))
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			return string(out), nil
		}
		return "", toolError("tidy", err)
	}
	return string(out), nil
}

func toolError(tool string, err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ToolError{Tool: tool, Stderr: string(exitErr.Stderr), Err: err}
	}
	return &ToolError{Tool: tool, Err: err}
}
