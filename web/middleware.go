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

package web

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/znxmin/data-jpa/types"
	"github.com/znxmin/data-jpa/utils"
)

const maxPageSize = 2000

// pageRequest reads page, size and sort=field,dir parameters. Without a
// sort parameter the defaults apply.
func pageRequest(r *http.Request, defaultSize int, defaultSort ...types.Order) (*types.PageRequest, error) {
	q := r.URL.Query()
	page, err := intParam(q.Get("page"), 0)
	if err != nil {
		return nil, err
	}
	size, err := intParam(q.Get("size"), defaultSize)
	if err != nil {
		return nil, err
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	if size > 0 && page > math.MaxInt/size {
		return nil, fmt.Errorf("%w: page %d is too large", types.ErrInvalidPageRequest, page)
	}
	sort := defaultSort
	if values := q["sort"]; len(values) > 0 {
		sort = make([]types.Order, 0, len(values))
		for _, v := range values {
			o, err := types.ParseOrder(v)
			if err != nil {
				return nil, err
			}
			sort = append(sort, o)
		}
	}
	req := types.NewPageRequest(page, size, sort...)
	return req, req.Validate()
}

func intParam(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", types.ErrInvalidPageRequest, s)
	}
	return n, nil
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		entry := s.logger.WithFields(logrus.Fields{
			"req_uri":      r.RequestURI,
			"req_method":   r.Method,
			"status_code":  rw.statusCode,
			"latency_time": utils.Elapsed(start),
		})
		switch {
		case rw.statusCode >= http.StatusInternalServerError:
			entry.Error("request completed")
		case rw.statusCode >= http.StatusBadRequest:
			entry.Warn("request completed")
		default:
			entry.Info("request completed")
		}
	})
}
