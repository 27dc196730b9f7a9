// Package peer implements the HTTP client that fetches a bundle from the
// peer shelterer named in a challenge (spec §4.3.2's downloadBundle).
package peer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/meshledger/ledger-node/src/entity"
	"github.com/meshledger/ledger-node/src/utils/config"
	"github.com/meshledger/ledger-node/src/utils/logger"
)

// Client fetches bundles from other shelterers over HTTP.
type Client struct {
	client *resty.Client
	log    *logrus.Entry
}

func NewClient(config *config.Peer) (self *Client) {
	self = new(Client)
	self.log = logger.NewSublogger("peer-client")

	self.client = resty.New().
		SetTimeout(config.RequestTimeout).
		SetHeader("User-Agent", "ledger-node").
		SetRetryCount(config.RetryCount).
		SetRetryWaitTime(time.Second)

	return
}

// DownloadBundle fetches the bundle identified by bundleId from
// sheltererUrl, which is expected to expose GET /bundles/{id}.
func (self *Client) DownloadBundle(ctx context.Context, sheltererUrl string, bundleId string) (*entity.Bundle, error) {
	resp, err := self.client.R().
		SetContext(ctx).
		Get(fmt.Sprintf("%s/bundles/%s", sheltererUrl, bundleId))
	if err != nil {
		return nil, fmt.Errorf("download bundle %s from %s: %w", bundleId, sheltererUrl, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("download bundle %s from %s: status %d", bundleId, sheltererUrl, resp.StatusCode())
	}

	var raw map[string]any
	if err := json.Unmarshal(resp.Body(), &raw); err != nil {
		return nil, fmt.Errorf("decode bundle %s: %w", bundleId, err)
	}

	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var bundle entity.Bundle
	if err := json.Unmarshal(buf, &bundle); err != nil {
		return nil, fmt.Errorf("unmarshal bundle %s: %w", bundleId, err)
	}

	return &bundle, nil
}
