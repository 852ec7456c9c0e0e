package handlers

import "github.com/xeipuuv/gojsonschema"

// Schemas check structure only. Semantic checks (known quality names,
// platform names, URL reachability) live in the coordinator so they stay in
// one place for every caller.
var transformVideoRequestSchema = `{
	"type": "object",
	"required": ["video_url"],
	"additionalProperties": false,
	"properties": {
		"video_url": {
			"type": "string",
			"format": "uri",
			"pattern": "^https?://"
		},
		"quality": { "type": "string" },
		"platform": { "type": "string" },
		"split": { "type": "boolean" },
		"denoise": { "type": "boolean" },
		"sharpen": { "type": "boolean" },
		"sharpen_strength": { "type": "number" },
		"brightness": { "type": "number" },
		"contrast": { "type": "number" },
		"saturation": { "type": "number" },
		"gamma": { "type": "number" },
		"add_subtitles": { "type": "boolean" },
		"subtitle_language": { "type": "string" },
		"audio_enhancement": { "type": "boolean" },
		"custom_bitrate": { "type": "integer", "minimum": 0 },
		"target_fps": { "type": "integer", "minimum": 0, "maximum": 120 }
	}
}`

var initialClipsRequestSchema = `{
	"type": "object",
	"required": ["video_url"],
	"additionalProperties": false,
	"properties": {
		"video_url": {
			"type": "string",
			"format": "uri",
			"pattern": "^https?://"
		}
	}
}`

var viralSelectionRequestSchema = `{
	"type": "object",
	"required": ["clips"],
	"additionalProperties": false,
	"properties": {
		"clips": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["url"],
				"properties": {
					"url": {
						"type": "string",
						"format": "uri",
						"pattern": "^https?://"
					}
				}
			}
		}
	}
}`

var inputSchemas = map[string]string{
	"TransformVideo": transformVideoRequestSchema,
	"InitialClips":   initialClipsRequestSchema,
	"ViralSelection": viralSelectionRequestSchema,
}

func compileJsonSchemas() map[string]*gojsonschema.Schema {
	compiled := make(map[string]*gojsonschema.Schema, len(inputSchemas))
	for name, text := range inputSchemas {
		schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(text))
		if err != nil {
			// raise panic on program start
			panic(err) // fix schema text
		}
		compiled[name] = schema
	}
	return compiled
}

// Run compile step on program start:
var inputSchemasCompiled = compileJsonSchemas()
