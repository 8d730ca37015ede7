package gep

import (
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var localizeOnce sync.Once

// localizedPrinter returns a message.Printer for tag, registering the
// package's translated log strings on first use.
func localizedPrinter(tag language.Tag) *message.Printer {
	localizeOnce.Do(registerLocalizedStrings)
	return message.NewPrinter(tag)
}

func registerLocalizedStrings() {
	message.SetString(language.AmericanEnglish, "log.malformed_frame", "dropping malformed frame: %v")
	message.SetString(language.AmericanEnglish, "log.hint_probe_failed", "hint probe failed for registry %d: %v")
	message.SetString(language.AmericanEnglish, "log.register_poll_failed", "poll failed for register %d: %v")

	message.SetString(language.German, "log.malformed_frame", "fehlerhaftes Frame verworfen: %v")
	message.SetString(language.German, "log.hint_probe_failed", "Hint-Abfrage für Register %d fehlgeschlagen: %v")
	message.SetString(language.German, "log.register_poll_failed", "Abfrage von Register %d fehlgeschlagen: %v")

	message.SetString(language.Finnish, "log.malformed_frame", "virheellinen kehys hylätty: %v")
	message.SetString(language.Finnish, "log.hint_probe_failed", "vihjekysely rekisterille %d epäonnistui: %v")
	message.SetString(language.Finnish, "log.register_poll_failed", "rekisterin %d kysely epäonnistui: %v")
}
