/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package utils

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(msg string, data logrus.Fields) *logrus.Entry {
	e := logrus.NewEntry(logrus.New())
	e.Time = time.Date(2025, 1, 2, 15, 4, 5, 0, time.UTC)
	e.Level = logrus.InfoLevel
	e.Message = msg
	e.Data = data
	return e
}

func TestLog4jColorFormatter(t *testing.T) {
	f := &Log4jColorFormatter{LoggerName: "DATABASE", NameWidth: 10, DisableColors: true}
	out, err := f.Format(entry("connected", logrus.Fields{"type": "sqlite", "host": "local"}))
	require.NoError(t, err)
	line := string(out)
	assert.Contains(t, line, "2025-01-02 15:04:05.000    INFO")
	assert.Contains(t, line, "  DATABASE : connected host=local type=sqlite\n")
}

func TestJSONLogFormatterLiftsRequestFields(t *testing.T) {
	f := &JSONLogFormatter{LoggerName: "WEB"}
	out, err := f.Format(entry("request", logrus.Fields{
		"req_method":  "GET",
		"req_uri":     "/members",
		"status_code": 200,
		"error":       errors.New("boom"),
	}))
	require.NoError(t, err)

	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &rec))
	assert.Equal(t, "WEB", rec["model"])
	assert.Equal(t, "GET", rec["method"])
	assert.Equal(t, "/members", rec["path"])
	assert.Equal(t, float64(200), rec["status_code"])
	assert.Equal(t, map[string]interface{}{"error": "boom"}, rec["fields"])
}

func TestNewLoggerIsNamedSingleton(t *testing.T) {
	a := NewLogger("TEST_SINGLETON")
	b := NewLogger("TEST_SINGLETON")
	assert.Same(t, a, b)

	assert.True(t, SetLoggerLevel("TEST_SINGLETON", "error"))
	assert.Equal(t, logrus.ErrorLevel, a.GetLevel())
	assert.False(t, SetLoggerLevel("TEST_UNKNOWN", "error"))
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, logrus.WarnLevel, ParseLogLevel(" Warning "))
	assert.Equal(t, logrus.InfoLevel, ParseLogLevel("nonsense"))
	assert.Equal(t, logrus.TraceLevel, ParseLogLevel("trace"))
}

func TestEnvDefaults(t *testing.T) {
	t.Setenv("UTILS_TEST_BOOL", "yes")
	t.Setenv("UTILS_TEST_STR", "  ")
	assert.True(t, EnvDefaultBool("UTILS_TEST_BOOL", false))
	assert.True(t, EnvDefaultBool("UTILS_TEST_MISSING", true))
	assert.Equal(t, "fallback", EnvDefaultString("UTILS_TEST_STR", "fallback"))
}
