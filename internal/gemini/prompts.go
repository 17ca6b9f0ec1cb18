package gemini

import (
	"google.golang.org/genai"
)

// ChatLogTemplate wraps a rendered message window for the model.
// The format string expects the window label and the log lines.
const ChatLogTemplate = `Chat log (%s):

%s`

// SongRequestSuffix is appended to the song instruction so the model answers
// with the fields the music generator needs.
const SongRequestSuffix = `

Answer strictly in JSON matching the schema. "lyrics" must contain verse and chorus markers ([Verse 1], [Chorus], ...). "style_prompt" must be shorter than 200 characters.`

// GiftRequestSuffix is appended to the gift instruction.
const GiftRequestSuffix = `

Answer strictly in JSON matching the schema. The photo prompt must describe a single photorealistic image of the gift.`

// Song is a composed song about a chat.
type Song struct {
	Title          string   `json:"song_title"`
	Genre          string   `json:"genre"`
	Mood           string   `json:"mood"`
	Lyrics         string   `json:"lyrics"`
	Description    string   `json:"description"`
	MainCharacters []string `json:"main_characters"`
	KeyEvents      []string `json:"key_events"`
	StylePrompt    string   `json:"style_prompt"`
}

// Style returns what the music generator should use as its style field.
func (s *Song) Style() string {
	if s.StylePrompt != "" {
		return s.StylePrompt
	}
	return s.Genre
}

// Gift is the chat director of the day and the gift invented for them.
type Gift struct {
	DirectorName     string `json:"director_name"`
	DirectorAnalysis string `json:"director_analysis"`
	Name             string `json:"gift_name"`
	Description      string `json:"gift_description"`
	Reasoning        string `json:"gift_reasoning"`
	PhotoPrompt      string `json:"gift_photo_prompt"`
}

var stringList = &genai.Schema{Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}}

var songSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"song_title":      {Type: genai.TypeString, Description: "Short catchy title."},
		"genre":           {Type: genai.TypeString, Description: "Music genre matching the chat mood."},
		"mood":            {Type: genai.TypeString, Description: "Overall mood of the song."},
		"lyrics":          {Type: genai.TypeString, Description: "Full lyrics with [Verse]/[Chorus] markers."},
		"description":     {Type: genai.TypeString, Description: "One sentence about what the song is about."},
		"main_characters": stringList,
		"key_events":      stringList,
		"style_prompt":    {Type: genai.TypeString, Description: "Style prompt for the music generator, under 200 characters."},
	},
	Required: []string{"song_title", "genre", "mood", "lyrics", "description", "main_characters", "key_events", "style_prompt"},
}

var giftSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"director_name":     {Type: genai.TypeString, Description: "Name of the chat director as it appears in the log."},
		"director_analysis": {Type: genai.TypeString, Description: "Why this participant is the director today."},
		"gift_name":         {Type: genai.TypeString},
		"gift_description":  {Type: genai.TypeString},
		"gift_reasoning":    {Type: genai.TypeString, Description: "How the gift relates to the director's activity."},
		"gift_photo_prompt": {Type: genai.TypeString},
	},
	Required: []string{"director_name", "director_analysis", "gift_name", "gift_description", "gift_reasoning", "gift_photo_prompt"},
}
