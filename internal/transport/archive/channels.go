// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package archive

import (
	"encoding/json"
	"fmt"

	"github.com/relabs-tech/sensor_node/internal/wire"
)

func marshalChannels(cs []wire.ChannelUsage) (string, error) {
	if cs == nil {
		cs = []wire.ChannelUsage{}
	}
	b, err := json.Marshal(cs)
	if err != nil {
		return "", fmt.Errorf("archive marshal channels: %w", err)
	}
	return string(b), nil
}

func unmarshalChannels(s string) ([]wire.ChannelUsage, error) {
	var cs []wire.ChannelUsage
	if err := json.Unmarshal([]byte(s), &cs); err != nil {
		return nil, fmt.Errorf("archive unmarshal channels: %w", err)
	}
	return cs, nil
}
