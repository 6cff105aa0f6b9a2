package gemini

import "google.golang.org/genai"

func str(description string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeString, Description: description}
}

func arrayOf(items *genai.Schema) *genai.Schema {
	return &genai.Schema{Type: genai.TypeArray, Items: items}
}

// objectList builds {key: [item...]}, the top-level shape of every response.
func objectList(key string, item *genai.Schema) *genai.Schema {
	return &genai.Schema{
		Type:       genai.TypeObject,
		Properties: map[string]*genai.Schema{key: arrayOf(item)},
	}
}

// TranscriptionAdvanced asks for time-coded, speaker-attributed segments.
var TranscriptionAdvanced = objectList("segments", &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"startTime":             str("Start time of the segment (e.g., 00:00:05)"),
		"endTime":               str("End time of the segment"),
		"transcript":            str("Original transcript text"),
		"transcriptionLanguage": str("Language code (e.g., en-US)"),
		"englishEquivalent":     str("English translation if applicable"),
		"type":                  str("Type of speech (e.g., dialogue, narration)"),
		"speakerGender":         str("Estimated gender of the speaker"),
		"speakerInfo":           str("Brief description of the speaker"),
	},
	Required: []string{"startTime", "endTime", "transcript"},
})

// SceneDescription asks for time-coded visual scene breakdowns.
var SceneDescription = objectList("scenes", &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"startTime":       str(""),
		"endTime":         str(""),
		"descriptionText": str("Detailed visual description of the scene"),
		"keyObjects":      arrayOf(str("")),
		"mood":            str(""),
	},
	Required: []string{"startTime", "endTime", "descriptionText"},
})

// Quiz asks for a mixed-format question set with answers.
var Quiz = objectList("questions", &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"id":            {Type: genai.TypeInteger},
		"questionType":  {Type: genai.TypeString, Enum: []string{"multiple_choice", "single_choice", "short_answer", "long_answer"}},
		"question":      str(""),
		"options":       arrayOf(str("")),
		"correctAnswer": str(""),
		"difficulty":    {Type: genai.TypeString, Enum: []string{"easy", "medium", "hard"}},
		"explanation":   str(""),
	},
	Required: []string{"id", "question", "options", "correctAnswer"},
})

// Flashcards asks for front/back study cards.
var Flashcards = objectList("flashcards", &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"front": str("The question or concept on the front of the card"),
		"back":  str("The answer or definition on the back of the card"),
		"tag":   str("Category or topic tag"),
	},
	Required: []string{"front", "back"},
})
