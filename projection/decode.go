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

package projection

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/znxmin/data-jpa/types"
)

// Into decodes a view into a DTO. Fields are matched by their
// `mapstructure` tag, or case-insensitively by name.
func Into[D any](view types.Row) (D, error) {
	var dto D
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &dto,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeHookFunc("2006-01-02T15:04:05Z07:00"),
	})
	if err != nil {
		return dto, err
	}
	if err := decoder.Decode(map[string]interface{}(view)); err != nil {
		return dto, fmt.Errorf("failed to decode %T: %w", dto, err)
	}
	return dto, nil
}

// IntoAll decodes every view.
func IntoAll[D any](views []types.Row) ([]D, error) {
	out := make([]D, len(views))
	for i, v := range views {
		dto, err := Into[D](v)
		if err != nil {
			return nil, err
		}
		out[i] = dto
	}
	return out, nil
}

// IntoPage decodes the content of a page of views.
func IntoPage[D any](page *types.Page[types.Row]) (*types.Page[D], error) {
	content, err := IntoAll[D](page.Content)
	if err != nil {
		return nil, err
	}
	return &types.Page[D]{Content: content, Total: page.Total, Offset: page.Offset, Limit: page.Limit}, nil
}
