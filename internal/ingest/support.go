package ingest

import (
	"strings"

	"github.com/metal-toolbox/inventory/internal/model"
	"github.com/pkg/errors"
)

// SupportStatus reports whether serial is under support.
//
// This is a stand-in for an entitlement lookup: a serial ending with an even
// digit is supported.
func (s *Service) SupportStatus(serial string) (*model.SupportStatus, error) {
	serial = strings.TrimSpace(serial)
	if serial == "" {
		return nil, errors.Wrap(ErrValidation, "serial is required")
	}

	last := serial[len(serial)-1]
	if last >= '0' && last <= '9' && (last-'0')%2 == 0 {
		return &model.SupportStatus{Serial: serial, Supported: true, Message: "This asset is still under support."}, nil
	}

	return &model.SupportStatus{Serial: serial, Supported: false, Message: "This asset is no longer under support."}, nil
}
