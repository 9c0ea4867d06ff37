// Copyright 2021-2022
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/penny-vault/pv-optimizer/analysis"
	"github.com/penny-vault/pv-optimizer/data"
	"github.com/penny-vault/pv-optimizer/optimizer"
	"github.com/penny-vault/pv-optimizer/returns"
)

var (
	ErrMalformedBody = errors.New("request body is not valid JSON")
)

var badRequest = []error{
	ErrMalformedBody,
	analysis.ErrInvalidRequest,
	optimizer.ErrInvalidParameter,
	optimizer.ErrOutOfRange,
	optimizer.ErrUnknownObjective,
	returns.ErrInvalidFrequency,
	data.ErrNoIdentifiers,
	data.ErrInvalidTimeRange,
	data.ErrUnknownMode,
	data.ErrUnknownAssetClass,
}

var unprocessable = []error{
	returns.ErrInsufficientData,
	optimizer.ErrInfeasibleProblem,
}

// StatusCode maps an error returned by the analysis layer to an HTTP status code
func StatusCode(err error) int {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code
	}
	for _, target := range badRequest {
		if errors.Is(err, target) {
			return fiber.StatusBadRequest
		}
	}
	for _, target := range unprocessable {
		if errors.Is(err, target) {
			return fiber.StatusUnprocessableEntity
		}
	}
	return fiber.StatusInternalServerError
}

// ErrorHandler renders errors as {"error": message}. Messages of unexpected errors
// are not sent to the client.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := StatusCode(err)
	msg := err.Error()
	if code == fiber.StatusInternalServerError {
		log.Error().Stack().Err(err).Str("Path", c.Path()).Msg("request failed")
		msg = "internal server error"
	}
	return c.Status(code).JSON(fiber.Map{"error": msg})
}
