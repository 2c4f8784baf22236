package tools

import "encoding/json"

// FormField describes one field of a generateForm tool call.
type FormField struct {
	Name  string `json:"name" jsonschema:"required"`
	Label string `json:"label,omitempty"`
	Type  string `json:"type" jsonschema:"enum=text,enum=number,enum=boolean,enum=select,required"`
}

// FormArgs is the argument shape for generateForm.
type FormArgs struct {
	Title  string      `json:"title" jsonschema:"required"`
	Fields []FormField `json:"fields"`
}

// ChartSeries is one data series of a generateChart tool call.
type ChartSeries struct {
	Label  string    `json:"label" jsonschema:"required"`
	Values []float64 `json:"values"`
}

// ChartArgs is the argument shape for generateChart.
type ChartArgs struct {
	Title  string        `json:"title" jsonschema:"required"`
	Kind   string        `json:"kind" jsonschema:"enum=line,enum=bar,enum=pie,required"`
	Series []ChartSeries `json:"series"`
}

// CodeArgs is the argument shape for generateCode.
type CodeArgs struct {
	Language string `json:"language" jsonschema:"required"`
	Source   string `json:"source" jsonschema:"required"`
	Filename string `json:"filename,omitempty"`
}

// CardArgs is the argument shape for generateCard.
type CardArgs struct {
	Title    string `json:"title" jsonschema:"required"`
	Body     string `json:"body,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// builtinDisplayTools returns the four display tools named in the display
// contract: each tool's handler is the identity function on its validated
// arguments — the "result" is the arguments themselves, echoed for
// rendering. The server never executes an effect on their behalf.
func builtinDisplayTools() []*Descriptor {
	return []*Descriptor{
		{
			Name:        "generateForm",
			Description: "Render a structured input form to the user",
			Schema:      schemaFor(FormArgs{}),
			handler:     identityHandler,
		},
		{
			Name:        "generateChart",
			Description: "Render a chart from labeled data series",
			Schema:      schemaFor(ChartArgs{}),
			handler:     identityHandler,
		},
		{
			Name:        "generateCode",
			Description: "Render a syntax-highlighted code block",
			Schema:      schemaFor(CodeArgs{}),
			handler:     identityHandler,
		},
		{
			Name:        "generateCard",
			Description: "Render a titled content card, optionally with an image",
			Schema:      schemaFor(CardArgs{}),
			handler:     identityHandler,
		},
	}
}

func identityHandler(args json.RawMessage) (json.RawMessage, error) {
	return args, nil
}
