/*
 * Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
 *
 * WSO2 LLC. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package utils

import (
	"fmt"
	"strconv"
	"time"
)

// RowString reads a column of a scanned row as a string.
func RowString(row map[string]interface{}, column string) string {
	switch v := row[column].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprint(v)
	}
}

// RowInt reads a column of a scanned row as an int. Unparsable values yield zero.
func RowInt(row map[string]interface{}, column string) int {
	switch v := row[column].(type) {
	case int64:
		return int(v)
	case int32:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	case []byte, string:
		n, err := strconv.Atoi(RowString(row, column))
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// RowBool reads a column of a scanned row as a bool. Databases without a boolean type store 0/1.
func RowBool(row map[string]interface{}, column string) bool {
	switch v := row[column].(type) {
	case bool:
		return v
	case int64:
		return v != 0
	case []byte, string:
		b, err := strconv.ParseBool(RowString(row, column))
		return err == nil && b
	default:
		return false
	}
}

// RowTime reads a column of a scanned row as a time.
func RowTime(row map[string]interface{}, column string) (time.Time, error) {
	switch v := row[column].(type) {
	case time.Time:
		return v, nil
	case []byte, string:
		s := RowString(row, column)
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00",
			"2006-01-02 15:04:05"} {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("invalid time value for column %s: %q", column, s)
	default:
		return time.Time{}, fmt.Errorf("unexpected type for column %s: %T", column, v)
	}
}
