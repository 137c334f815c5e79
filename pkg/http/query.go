package http

import (
	"strconv"

	"github.com/labstack/echo/v4"

	xutil "SignalScan/pkg/util"
)

// QueryInt reads an integer query parameter or returns def.
func QueryInt(c echo.Context, name string, def int) int {
	return xutil.ParseIntDefault(c.QueryParam(name), def)
}

// QueryBool reads a boolean query parameter or returns def.
func QueryBool(c echo.Context, name string, def bool) bool {
	v, err := strconv.ParseBool(c.QueryParam(name))
	if err != nil {
		return def
	}
	return v
}
