// internal/view/uahelpers.go
//
// User-Agent template helpers.  They take the *requestinfo.RequestInfo that
// every Page carries and tolerate nil, so pages rendered outside the
// middleware chain (tests) still execute.
package view

import (
	"html/template"

	"github.com/yanizio/formlab/internal/requestinfo"
)

func uaFuncMap() template.FuncMap {
	return template.FuncMap{
		"browser": func(ri *requestinfo.RequestInfo) string {
			if ri == nil {
				return ""
			}
			return ri.UA.Browser
		},
		"os": func(ri *requestinfo.RequestInfo) string {
			if ri == nil {
				return ""
			}
			return ri.UA.OS
		},
		"device": func(ri *requestinfo.RequestInfo) string {
			if ri == nil {
				return ""
			}
			return ri.UA.Device
		},
		"isBot": func(ri *requestinfo.RequestInfo) bool { return ri != nil && ri.UA.IsBot },
	}
}
