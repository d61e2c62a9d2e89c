package barberdesk

import (
	"context"

	"github.com/pitabwire/barberdesk/api"
)

// translationBackend exposes the translation endpoints of the REST client
// to the editor.
type translationBackend struct {
	client *api.Client
}

func (b translationBackend) LookupSourceID(ctx context.Context, source string, lang string) (int64, error) {
	found, err := b.client.LookupSourceString(ctx, source, lang)
	if err != nil {
		return 0, err
	}
	return found.ID, nil
}

func (b translationBackend) SaveTranslation(
	ctx context.Context,
	source string,
	lang string,
	value string,
	sourceID int64,
) error {
	_, err := b.client.SaveTranslation(ctx, api.TranslationInput{
		String:       source,
		Traduction:   value,
		Language:     lang,
		TraductionID: sourceID,
	})
	return err
}
