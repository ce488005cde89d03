// SPDX-License-Identifier: GPL-3.0-or-later

package collector

import (
	_ "github.com/zmwatch/zmwatch/plugin/zm.d/collector/zoneminder"
)
