// Package llm provides options pattern for LLM generation parameters.
//
// Defaults come from config.yaml (models.definitions) and run flags;
// the classifier overrides them per request.
package llm

import "encoding/json"

// GenerateOptions holds parameters for LLM generation.
type GenerateOptions struct {
	// Model is the model identifier (e.g., "pierce-county-records-classifier-phi2:latest")
	Model string

	// Temperature controls randomness in responses (0.0 = deterministic, 1.0 = random)
	Temperature float64

	// MaxTokens limits the response length
	MaxTokens int

	// Format specifies response format ("json_object" or "json_schema")
	Format string

	// Schema is the JSON Schema of the expected answer (Format == "json_schema")
	Schema     json.Marshaler
	SchemaName string
}

// GenerateOption is a functional option for configuring GenerateOptions.
type GenerateOption func(*GenerateOptions)

// WithModel sets the model for generation.
func WithModel(model string) GenerateOption {
	return func(o *GenerateOptions) {
		o.Model = model
	}
}

// WithTemperature sets the temperature for generation, clamped to [0, 1].
func WithTemperature(temp float64) GenerateOption {
	return func(o *GenerateOptions) {
		switch {
		case temp < 0:
			temp = 0
		case temp > 1:
			temp = 1
		}
		o.Temperature = temp
	}
}

// WithMaxTokens sets the maximum tokens for generation.
func WithMaxTokens(tokens int) GenerateOption {
	return func(o *GenerateOptions) {
		o.MaxTokens = tokens
	}
}

// WithFormat sets the response format for generation.
// Use "json_object" for free-form structured JSON output.
func WithFormat(format string) GenerateOption {
	return func(o *GenerateOptions) {
		o.Format = format
	}
}

// WithSchema requests structured output validated against schema.
func WithSchema(name string, schema json.Marshaler) GenerateOption {
	return func(o *GenerateOptions) {
		o.Format = FormatJSONSchema
		o.SchemaName = name
		o.Schema = schema
	}
}

// NewRequest builds a ChatRequest from messages and options.
func NewRequest(messages []Message, opts ...GenerateOption) ChatRequest {
	var o GenerateOptions
	for _, opt := range opts {
		opt(&o)
	}
	return ChatRequest{
		Model:       o.Model,
		Temperature: o.Temperature,
		MaxTokens:   o.MaxTokens,
		Format:      o.Format,
		Schema:      o.Schema,
		SchemaName:  o.SchemaName,
		Messages:    messages,
	}
}
