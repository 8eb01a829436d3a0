// Copyright (c) 2025 keycourier contributors
// Keycourier - SSH public key transmitter
// This source code is licensed under the MIT license found in the LICENSE file.

// Package i18n provides internationalization support for keycourier.
// It uses the go-i18n library to load and manage translation files so
// log and error messages can be displayed in multiple languages.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"

	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// localeFS embeds the YAML translation files from the 'locales' directory
// into the application binary.
//
//go:embed locales/*.yaml
var localeFS embed.FS

// bundle stores all the loaded translation messages from the locale files.
var bundle *i18n.Bundle

// localizer is used to translate messages into a specific language.
var localizer *i18n.Localizer

// lang is the currently active language tag.
var lang string

// Init initializes the i18n bundle and sets up the localizer for a specific
// language. It parses all embedded YAML files from the 'locales' directory.
func Init(tag string) {
	bundle = i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("yaml", yaml.Unmarshal)

	files, _ := fs.ReadDir(localeFS, "locales")
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		data, _ := localeFS.ReadFile("locales/" + f.Name())
		bundle.ParseMessageFileBytes(data, f.Name())
	}

	lang = tag
	localizer = i18n.NewLocalizer(bundle, tag)
}

// T translates a message by its ID. Additional args are applied with
// fmt-style formatting. If the i18n system has not been initialized, it
// defaults to English; if a translation is missing, the ID itself is
// returned so callers always get a usable string.
func T(messageID string, args ...any) string {
	if localizer == nil {
		Init("en")
	}
	msg, err := localizer.Localize(&i18n.LocalizeConfig{MessageID: messageID})
	if err != nil {
		return messageID
	}
	if len(args) > 0 {
		return fmt.Sprintf(msg, args...)
	}
	return msg
}

// GetLang returns the active language tag.
func GetLang() string {
	if lang == "" {
		return "en"
	}
	return lang
}

// SetLang changes the active language of the localizer.
func SetLang(tag string) {
	Init(tag)
}
