// Package httpclient stellt den gemeinsamen REST-Client für alle Provider bereit.
package httpclient

import (
	"net/http"

	"pdb-harvest/config"

	"github.com/go-resty/resty/v2"
)

// New erstellt einen resty-Client mit Timeout, User-Agent und optionalen Wiederholungen.
//
// Mit HTTP_RETRY_COUNT=0 wird ein fehlgeschlagener Aufruf nicht wiederholt.
func New(cfg *config.Config) *resty.Client {
	c := resty.New().
		SetTimeout(cfg.HTTPTimeout).
		SetHeader("User-Agent", cfg.UserAgent)

	if cfg.HTTPRetryCount > 0 {
		c.SetRetryCount(cfg.HTTPRetryCount).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				if err != nil {
					return true
				}
				return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
			})
	}
	return c
}
