package resolve

import (
	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/tunetap/internal/infra/config"
	"github.com/osa030/tunetap/internal/infra/musicbrainz"
)

// MusicBrainzSettings holds the musicbrainz provider settings.
type MusicBrainzSettings struct {
	UserAgent string `yaml:"user_agent" mapstructure:"user_agent" default:"tunetap/1.0 ( https://github.com/osa030/tunetap )" validate:"required"`
}

// NewProviderFromConfig creates the metadata provider from configuration.
func NewProviderFromConfig(pcfg config.ProviderConfig) (Provider, error) {
	zlog.Debug().Msgf("creating metadata provider: type=%s settings=%+v", pcfg.Type, pcfg.Settings)

	switch pcfg.Type {
	case "musicbrainz":
		var settings MusicBrainzSettings
		if err := mapstructure.Decode(pcfg.Settings, &settings); err != nil {
			return nil, errors.Wrap(err, "failed to decode musicbrainz settings")
		}
		if err := defaults.Set(&settings); err != nil {
			return nil, errors.Wrap(err, "failed to set musicbrainz defaults")
		}
		if err := validator.New().Struct(&settings); err != nil {
			return nil, errors.Wrap(err, "invalid musicbrainz settings")
		}
		return musicbrainz.New(musicbrainz.Config{UserAgent: settings.UserAgent})

	default:
		return nil, errors.Newf("unsupported metadata provider type: %s", pcfg.Type)
	}
}
