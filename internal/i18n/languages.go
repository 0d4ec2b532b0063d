package i18n

import (
	"sort"
	"strings"
	"sync"

	"github.com/guardbot/guardbot/resources"
)

var languageNames = map[string]string{
	"be": "Belarusian",
	"bg": "Bulgarian",
	"cs": "Czech",
	"da": "Danish",
	"de": "German",
	"el": "Greek",
	"en": "English",
	"es": "Spanish",
	"et": "Estonian",
	"fi": "Finnish",
	"fr": "French",
	"hu": "Hungarian",
	"id": "Indonesian",
	"it": "Italian",
	"ja": "Japanese",
	"ko": "Korean",
	"lt": "Lithuanian",
	"lv": "Latvian",
	"nb": "Norwegian Bokmal",
	"nl": "Dutch",
	"pl": "Polish",
	"pt": "Portuguese",
	"ro": "Romanian",
	"ru": "Russian",
	"sk": "Slovak",
	"sl": "Slovenian",
	"sv": "Swedish",
	"tr": "Turkish",
	"uk": "Ukrainian",
	"zh": "Chinese",
}

func GetLanguageName(code string) string {
	normalized := strings.ToLower(code)
	if name, ok := languageNames[normalized]; ok {
		return name
	}
	return code
}

var (
	languagesOnce sync.Once
	languages     []string
)

// GetLanguagesList returns the codes the bot can actually serve: English plus
// every embedded locale file.
func GetLanguagesList() []string {
	languagesOnce.Do(func() {
		codes := []string{"en"}
		entries, err := resources.FS.ReadDir("i18n")
		if err != nil {
			languages = codes
			return
		}
		for _, entry := range entries {
			name := entry.Name()
			if entry.IsDir() || !strings.HasSuffix(name, ".yml") {
				continue
			}
			codes = append(codes, strings.TrimSuffix(name, ".yml"))
		}
		sort.Strings(codes)
		languages = codes
	})
	return languages
}
