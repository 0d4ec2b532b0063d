package i18n

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/guardbot/guardbot/resources"
)

var state = struct {
	mu           sync.RWMutex
	translations map[string]map[string]string
	loaded       map[string]bool
}{
	translations: make(map[string]map[string]string),
	loaded:       make(map[string]bool),
}

func load(lang string) {
	if "en" == lang {
		return
	}

	raw, err := resources.FS.ReadFile(fmt.Sprintf("i18n/%s.yml", lang))
	if err != nil {
		log.WithError(err).WithField("lang", lang).Errorln("cant load i18n")
		state.loaded[lang] = true
		return
	}
	translations := make(map[string]string)
	if err := yaml.Unmarshal(raw, &translations); err != nil {
		log.WithError(err).WithField("lang", lang).Errorln("cant unmarshal i18n")
		state.loaded[lang] = true
		return
	}
	state.translations[lang] = translations
	state.loaded[lang] = true
}

// Get returns the translation of key for lang, falling back to the key
// itself. English is the source language and always passes through.
func Get(key, lang string) string {
	if "en" == lang {
		return key
	}
	state.mu.RLock()
	loaded := state.loaded[lang]
	state.mu.RUnlock()
	if !loaded {
		state.mu.Lock()
		if !state.loaded[lang] {
			load(lang)
		}
		state.mu.Unlock()
	}
	state.mu.RLock()
	defer state.mu.RUnlock()
	if res, ok := state.translations[lang][key]; ok {
		return res
	}
	log.Tracef(`no translation for key %q in %q`, key, lang)
	return key
}
