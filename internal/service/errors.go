package service

import (
	"errors"
	"fmt"

	"github.com/notifyhub/tipcast/internal/domain"
)

// storeErr tags a repository failure with domain.ErrStore. Not-found passes
// through unchanged so handlers can answer 404.
func storeErr(op string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrStore, op, err)
}

func gatewayErr(err error) error {
	if errors.Is(err, domain.ErrGateway) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrGateway, err)
}
