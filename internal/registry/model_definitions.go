// This file contains the static model definitions advertised by the bridge.
package registry

// GetGeminiModels returns the standard Gemini model definitions.
func GetGeminiModels() []*ModelInfo {
	return []*ModelInfo{
		{
			ID:               "gemini-2.5-pro",
			Object:           "model",
			Created:          1750118400,
			OwnedBy:          "google",
			DisplayName:      "Gemini 2.5 Pro",
			Description:      "Stable release of Gemini 2.5 Pro",
			InputTokenLimit:  1048576,
			OutputTokenLimit: 65536,
		},
		{
			ID:               "gemini-2.5-flash",
			Object:           "model",
			Created:          1750118400,
			OwnedBy:          "google",
			DisplayName:      "Gemini 2.5 Flash",
			Description:      "Stable version of Gemini 2.5 Flash, released in June of 2025.",
			InputTokenLimit:  1048576,
			OutputTokenLimit: 65536,
		},
		{
			ID:               "gemini-2.5-flash-lite",
			Object:           "model",
			Created:          1753142400,
			OwnedBy:          "google",
			DisplayName:      "Gemini 2.5 Flash Lite",
			Description:      "Smallest and most cost effective model, built for at scale usage.",
			InputTokenLimit:  1048576,
			OutputTokenLimit: 65536,
		},
		{
			ID:               "gemini-3-pro-preview",
			Object:           "model",
			Created:          1737158400,
			OwnedBy:          "google",
			DisplayName:      "Gemini 3 Pro Preview",
			InputTokenLimit:  1048576,
			OutputTokenLimit: 65536,
		},
		{
			ID:               "gemini-3-flash-preview",
			Object:           "model",
			Created:          1765929600,
			OwnedBy:          "google",
			DisplayName:      "Gemini 3 Flash Preview",
			InputTokenLimit:  1048576,
			OutputTokenLimit: 65536,
		},
	}
}
