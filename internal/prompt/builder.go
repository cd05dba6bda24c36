// Package prompt maps an OCR mode and options to the sentinel-laced prompt
// string the model expects, mirroring the teacher's prompt-assembly idiom
// in internal/ai but replacing the receipt-extraction prompt bank with the
// grounded-OCR mode table.
package prompt

import "fmt"

// Mode is one of the enumerated OCR modes.
type Mode string

const (
	ModePlainOCR     Mode = "plain_ocr"
	ModeMarkdown     Mode = "markdown"
	ModeTablesCSV    Mode = "tables_csv"
	ModeTablesMD     Mode = "tables_md"
	ModeKVJSON       Mode = "kv_json"
	ModeFigureChart  Mode = "figure_chart"
	ModeFindRef      Mode = "find_ref"
	ModeLayoutMap    Mode = "layout_map"
	ModePIIRedact    Mode = "pii_redact"
	ModeMultilingual Mode = "multilingual"
	ModeDescribe     Mode = "describe"
	ModeFreeform     Mode = "freeform"
)

// Options configures a single build() call. Zero values take the
// documented defaults.
type Options struct {
	Grounding      bool
	IncludeCaption bool
	FindTerm       string // default "Total"
	Schema         string // default "{}"
	UserPrompt     string // for ModeFreeform; default "OCR this image."
}

// forcedGroundingModes always set grounding_enabled = true regardless of
// the caller's Options.Grounding.
var forcedGroundingModes = map[Mode]bool{
	ModeFindRef:   true,
	ModeLayoutMap: true,
	ModePIIRedact: true,
}

// Build maps mode+opts to the final prompt string:
// "<image>\n" + ("<|grounding|>\n" if grounding) + instruction [+ caption suffix].
func Build(mode Mode, opts Options) string {
	grounding := opts.Grounding || forcedGroundingModes[mode]

	instruction := instructionFor(mode, opts)

	prompt := "<image>\n"
	if grounding {
		prompt += "<|grounding|>\n"
	}
	prompt += instruction

	if opts.IncludeCaption && mode != ModeDescribe {
		prompt += "\nThen add a one-paragraph description of the image."
	}
	return prompt
}

// Grounding reports whether mode+opts results in grounding being enabled,
// for callers (the sync OCR handler) that need it independent of Build.
func Grounding(mode Mode, opts Options) bool {
	return opts.Grounding || forcedGroundingModes[mode]
}

func instructionFor(mode Mode, opts Options) string {
	switch mode {
	case ModePlainOCR:
		return "Free OCR."
	case ModeMarkdown:
		return "Convert the document to markdown."
	case ModeTablesCSV:
		return "Extract tables as CSV, --- separator between tables."
	case ModeTablesMD:
		return "Extract tables as GFM."
	case ModeKVJSON:
		schema := opts.Schema
		if schema == "" {
			schema = "{}"
		}
		return fmt.Sprintf("Return JSON matching this schema: %s", schema)
	case ModeFigureChart:
		return "Numeric series as (x,y) table, then ---, then 2-sentence summary."
	case ModeFindRef:
		term := opts.FindTerm
		if term == "" {
			term = "Total"
		}
		return fmt.Sprintf("Locate <|ref|>%s<|/ref|> in the image.", term)
	case ModeLayoutMap:
		return "Return JSON blocks {type, box} -- no content."
	case ModePIIRedact:
		return "Return JSON {label, text, box} for emails, phones, addresses, IBANs."
	case ModeMultilingual:
		return "Free OCR." // with language detection, per the model's native behavior
	case ModeDescribe:
		return "Describe the image."
	case ModeFreeform:
		if opts.UserPrompt == "" {
			return "OCR this image."
		}
		return opts.UserPrompt
	default:
		return "Free OCR."
	}
}
