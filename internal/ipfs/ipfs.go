// Package ipfs is the content store adapter. Blobs are opaque JSON objects
// addressed by CID; identifiers travel as "ipfs://<cid>" on the wire.
package ipfs

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"

	"swarmpool/internal/canon"
	"swarmpool/internal/utils"

	shell "github.com/ipfs/go-ipfs-api"
	"go.uber.org/zap"
)

const cidPrefix = "ipfs://"

type Client struct {
	sh  *shell.Shell
	log *zap.SugaredLogger
}

func NewClient(apiAddr string, log *zap.SugaredLogger) *Client {
	return &Client{sh: shell.NewShell(apiAddr), log: log}
}

// FetchJSON fetches and decodes the blob at cid. A missing blob or non-JSON
// content is an error; callers drop the message.
func (c *Client) FetchJSON(cid string) (map[string]any, error) {
	r, err := c.sh.Cat(StripScheme(cid))
	if err != nil {
		return nil, utils.Wrap("failed fetching blob", err)
	}
	defer func() {
		_ = r.Close()
	}()
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, utils.Wrap("failed reading blob", err)
	}
	obj, err := canon.Decode(body)
	if err != nil {
		return nil, utils.Wrap("blob is not a json object", err)
	}
	return obj, nil
}

// UploadJSON adds obj to the store and returns its content identifier.
func (c *Client) UploadJSON(obj any) (string, error) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(obj); err != nil {
		return "", utils.Wrap("failed encoding blob", err)
	}
	cid, err := c.sh.Add(bytes.NewReader(buf.Bytes()), shell.CidVersion(1))
	if err != nil {
		return "", utils.Wrap("failed uploading blob", err)
	}
	return cidPrefix + cid, nil
}

func (c *Client) Pin(cid string) error {
	if err := c.sh.Pin(StripScheme(cid)); err != nil {
		return utils.Wrap("failed pinning blob", err)
	}
	return nil
}

func StripScheme(cid string) string {
	return strings.TrimPrefix(cid, cidPrefix)
}
