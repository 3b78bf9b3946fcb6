// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package requests

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	"github.com/anacrolix/torrent/metainfo"
	"github.com/pkg/errors"
	"github.com/zeebo/bencode"
)

// asinTag is the torrent tag that ties a download back to its book. The
// monitor uses it to self-heal requests whose hash was never recorded.
func asinTag(asin string) string {
	return "asin:" + asin
}

var btihRe = regexp.MustCompile(`^urn:btih:([0-9a-fA-F]{40})$`)

// hashFromMagnet extracts the 40-hex v1 info hash from a magnet link. Base32
// hashes and v2 multihashes are not recognized; callers fall back to the
// asin tag in that case.
func hashFromMagnet(magnet string) (string, bool) {
	u, err := url.Parse(magnet)
	if err != nil || u.Scheme != "magnet" {
		return "", false
	}
	for _, xt := range u.Query()["xt"] {
		if m := btihRe.FindStringSubmatch(xt); m != nil {
			return strings.ToLower(m[1]), true
		}
	}
	return "", false
}

// validateTorrent rejects payloads that are not bencoded metainfo, typically
// an HTML error page served where a .torrent was expected.
func validateTorrent(data []byte) error {
	var meta struct {
		Info bencode.RawMessage `bencode:"info"`
	}
	if err := bencode.DecodeBytes(data, &meta); err != nil {
		return errors.Wrap(err, "payload is not a torrent file")
	}
	if len(meta.Info) == 0 {
		return errors.New("torrent file has no info dictionary")
	}
	return nil
}

// hashFromTorrent computes the v1 info hash of torrent file bytes.
func hashFromTorrent(data []byte) (string, error) {
	mi, err := metainfo.Load(bytes.NewReader(data))
	if err != nil {
		return "", errors.Wrap(err, "failed to parse torrent file")
	}
	return strings.ToLower(mi.HashInfoBytes().HexString()), nil
}
