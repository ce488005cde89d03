// SPDX-License-Identifier: GPL-3.0-or-later

package zoneminder

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/blang/semver/v4"
	"github.com/tidwall/gjson"
	"github.com/valyala/fastjson"
)

// layeredOutput holds the top-level keys of every JSON response of a pass.
// A later response overwrites same-named keys of an earlier one.
type layeredOutput map[string]gjson.Result

func (o layeredOutput) merge(body []byte) error {
	v, err := fastjson.ParseBytes(body)
	if err != nil {
		return err
	}
	obj, err := v.Object()
	if err != nil {
		return fmt.Errorf("top-level value: %v", err)
	}

	obj.Visit(func(key []byte, v *fastjson.Value) {
		o[string(key)] = gjson.ParseBytes(v.MarshalTo(nil))
	})
	return nil
}

func (o layeredOutput) get(path string) gjson.Result {
	root, rest, _ := strings.Cut(path, ".")
	v, ok := o[root]
	if !ok {
		return gjson.Result{}
	}
	if rest == "" {
		return v
	}
	return v.Get(rest)
}

func parseActiveState(states gjson.Result) (any, bool) {
	if !states.IsArray() {
		return nil, false
	}

	var id gjson.Result
	states.ForEach(func(_, st gjson.Result) bool {
		if isActiveFlag(st.Get("State.IsActive")) {
			id = st.Get("State.Id")
			return false
		}
		return true
	})
	if !id.Exists() {
		return nil, false
	}
	return scalar(id), true
}

func isActiveFlag(v gjson.Result) bool {
	switch v.Type {
	case gjson.String:
		return v.Str == "1"
	case gjson.Number:
		return v.Num == 1
	case gjson.True:
		return true
	default:
		return false
	}
}

func parseLoad(load gjson.Result) ([3]any, bool) {
	var res [3]any
	if !load.IsArray() {
		return res, false
	}
	arr := load.Array()
	if len(arr) < 3 {
		return res, false
	}
	for i := range res {
		res[i] = scalar(arr[i])
	}
	return res, true
}

// parseEvents returns the event count for monitorID, or the total over all monitors when monitorID is empty.
// The server sends an empty list instead of an empty object when there are no events.
func parseEvents(results gjson.Result, monitorID string) int64 {
	if !results.IsObject() {
		return 0
	}

	if monitorID != "" {
		v, _ := coerceInt(scalar(results.Get(gjson.Escape(monitorID))))
		return v
	}

	var sum int64
	results.ForEach(func(_, v gjson.Result) bool {
		n, _ := coerceInt(scalar(v))
		sum += n
		return true
	})
	return sum
}

// truthy follows the loose truth rules of the 1.30 daemonStatus "status" field.
func truthy(v gjson.Result) bool {
	switch v.Type {
	case gjson.True:
		return true
	case gjson.Number:
		return v.Num != 0
	case gjson.String:
		return v.Str != ""
	case gjson.JSON:
		if v.IsArray() {
			return len(v.Array()) > 0
		}
		return len(v.Map()) > 0
	default:
		return false
	}
}

func scalar(v gjson.Result) any {
	switch v.Type {
	case gjson.String:
		return v.Str
	case gjson.Number:
		return v.Num
	case gjson.True:
		return true
	case gjson.False:
		return false
	case gjson.JSON:
		return v.Raw
	default:
		return nil
	}
}

var reVersionCore = regexp.MustCompile(`\d+\.\d+\.\d+`)

type serverVersion struct {
	version    *semver.Version
	apiVersion *semver.Version
}

func parseVersion(body []byte) (serverVersion, error) {
	if !gjson.ValidBytes(body) {
		return serverVersion{}, errors.New("invalid JSON")
	}

	var sv serverVersion
	res := gjson.GetManyBytes(body, "version", "apiversion")

	for i, r := range res {
		if !r.Exists() {
			continue
		}
		core := reVersionCore.FindString(r.String())
		if core == "" {
			continue
		}
		v, err := semver.New(core)
		if err != nil {
			continue
		}
		if i == 0 {
			sv.version = v
		} else {
			sv.apiVersion = v
		}
	}

	if sv.version == nil {
		return sv, errors.New("no server version in response")
	}
	return sv, nil
}
