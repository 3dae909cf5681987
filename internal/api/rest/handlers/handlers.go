// Package handlers provides API endpoint handling functionality.

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"strconv"
	"strings"
	"time"

	handlersErrors "github.com/asunaverse/equipledger/internal/api/rest/errors"
	"github.com/asunaverse/equipledger/internal/config"
	"github.com/asunaverse/equipledger/internal/models/modeldto"
	"github.com/asunaverse/equipledger/internal/service/accounts/v1"
	accountsErrors "github.com/asunaverse/equipledger/internal/service/accounts/v1/errors"
	"github.com/asunaverse/equipledger/internal/service/billing/v1"
	billingErrors "github.com/asunaverse/equipledger/internal/service/billing/v1/errors"
	"github.com/asunaverse/equipledger/internal/service/equip/v1"
	equipErrors "github.com/asunaverse/equipledger/internal/service/equip/v1/errors"
	storageErrors "github.com/asunaverse/equipledger/internal/storage/v1/errors"
	"github.com/go-chi/chi"
	"github.com/rs/zerolog"
)

// Handler defines attributes of a struct available to its methods.
type Handler struct {
	accountsService accounts.Processor
	equipService    equip.Processor
	billingService  billing.Biller
	serverConfig    *config.ServerConfig
	log             *zerolog.Logger
}

// InitHandlers initializes a handler object.
func InitHandlers(accountsService accounts.Processor, equipService equip.Processor, billingService billing.Biller, serverConfig *config.ServerConfig, log *zerolog.Logger) (*Handler, error) {
	if accountsService == nil {
		return nil, &handlersErrors.HandlersFoundNilArgument{Msg: "nil accounts processor was passed to handlers initializer"}
	}
	if equipService == nil {
		return nil, &handlersErrors.HandlersFoundNilArgument{Msg: "nil equip processor was passed to handlers initializer"}
	}
	if billingService == nil {
		return nil, &handlersErrors.HandlersFoundNilArgument{Msg: "nil biller was passed to handlers initializer"}
	}
	return &Handler{accountsService: accountsService, equipService: equipService, billingService: billingService, serverConfig: serverConfig, log: log}, nil
}

// HandleLogin processes wallet login requests.
func (h *Handler) HandleLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if r.Header.Get("Content-Type") != "application/json" {
			http.Error(w, "Invalid Content-Type", http.StatusBadRequest)
			return
		}
		b, err := ioutil.ReadAll(r.Body)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleLogin failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		var credentials modeldto.Login
		err = json.Unmarshal(b, &credentials)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleLogin failed")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Info().Msg(fmt.Sprintf("new login request detected for %s", credentials.Address))
		if credentials.Address == "" || credentials.Message == "" || credentials.Signature == "" {
			h.log.Error().Msg("HandleLogin failed")
			http.Error(w, "Empty values are not allowed", http.StatusBadRequest)
			return
		}
		accessToken, err := h.accountsService.LoginUser(ctx, credentials)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleLogin failed")
			var contextTimeoutExceededError *storageErrors.ContextTimeoutExceededError
			var invalidSignatureError *accountsErrors.InvalidSignatureError
			var signatureMismatchError *accountsErrors.SignatureMismatchError
			if errors.As(err, &contextTimeoutExceededError) {
				http.Error(w, err.Error(), http.StatusGatewayTimeout)
			} else if errors.As(err, &invalidSignatureError) {
				http.Error(w, err.Error(), http.StatusBadRequest)
			} else if errors.As(err, &signatureMismatchError) {
				http.Error(w, err.Error(), http.StatusUnauthorized)
			} else {
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
			return
		}
		w.Header().Set("Authorization", "Bearer "+accessToken)
		w.WriteHeader(http.StatusOK)
	}
}

// HandleGetBalance processes balance query requests.
func (h *Handler) HandleGetBalance() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		address, err := h.getAddress(r)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleGetBalance failed")
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		balance, err := h.accountsService.GetBalance(ctx, address)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleGetBalance failed")
			var contextTimeoutExceededError *storageErrors.ContextTimeoutExceededError
			var notFoundError *storageErrors.NotFoundError
			if errors.As(err, &contextTimeoutExceededError) {
				http.Error(w, err.Error(), http.StatusGatewayTimeout)
			} else if errors.As(err, &notFoundError) {
				http.Error(w, err.Error(), http.StatusNotFound)
			} else {
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
			return
		}
		resBody, err := json.Marshal(balance)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleGetBalance failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, err = w.Write(resBody)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleGetBalance failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// HandleNewRequests processes accessory equip and unequip requests.
func (h *Handler) HandleNewRequests() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()
		address, err := h.getAddress(r)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleNewRequests failed")
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		if r.Header.Get("Content-Type") != "application/json" {
			http.Error(w, "Invalid Content-Type", http.StatusBadRequest)
			return
		}
		b, err := ioutil.ReadAll(r.Body)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleNewRequests failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		var newRequest modeldto.NewActionRequest
		err = json.Unmarshal(b, &newRequest)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleNewRequests failed")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Info().Msg(fmt.Sprintf("new %s request detected for asuna %d", newRequest.ActionType, newRequest.AsunaID))
		created, err := h.equipService.CreateRequests(ctx, newRequest, address)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleNewRequests failed")
			var contextTimeoutExceededError *storageErrors.ContextTimeoutExceededError
			var insufficientFundsError *storageErrors.InsufficientFundsError
			var noSelectionError *equipErrors.NoSelectionError
			var unknownActionError *equipErrors.UnknownActionError
			var unknownAsunaError *equipErrors.UnknownAsunaError
			var alreadyEquippedError *equipErrors.AlreadyEquippedError
			var notEquippedError *equipErrors.NotEquippedError
			var conflictingPendingRequestError *equipErrors.ConflictingPendingRequestError
			if errors.As(err, &contextTimeoutExceededError) {
				http.Error(w, err.Error(), http.StatusGatewayTimeout)
			} else if errors.As(err, &noSelectionError) || errors.As(err, &unknownActionError) {
				http.Error(w, err.Error(), http.StatusBadRequest)
			} else if errors.As(err, &unknownAsunaError) || errors.As(err, &alreadyEquippedError) || errors.As(err, &notEquippedError) {
				http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			} else if errors.As(err, &conflictingPendingRequestError) {
				http.Error(w, err.Error(), http.StatusConflict)
			} else if errors.As(err, &insufficientFundsError) {
				http.Error(w, err.Error(), http.StatusPaymentRequired)
			} else {
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
			return
		}
		resBody, err := json.Marshal(created)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleNewRequests failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, err = w.Write(resBody)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleNewRequests failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// HandleGetRequests processes request history queries for one asuna.
func (h *Handler) HandleGetRequests() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		asunaID, err := strconv.ParseInt(chi.URLParam(r, "asunaID"), 10, 64)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleGetRequests failed")
			http.Error(w, "Invalid asuna identifier", http.StatusBadRequest)
			return
		}
		limit := 0
		if rawLimit := r.URL.Query().Get("limit"); rawLimit != "" {
			limit, err = strconv.Atoi(rawLimit)
			if err != nil || limit < 0 {
				http.Error(w, "Invalid limit", http.StatusBadRequest)
				return
			}
		}
		requests, err := h.equipService.ListRequests(ctx, asunaID, r.URL.Query().Get("action_type"), r.URL.Query().Get("txn_state"), limit)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleGetRequests failed")
			var contextTimeoutExceededError *storageErrors.ContextTimeoutExceededError
			if errors.As(err, &contextTimeoutExceededError) {
				http.Error(w, err.Error(), http.StatusGatewayTimeout)
			} else {
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
			return
		}
		if len(requests) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		resBody, err := json.Marshal(requests)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleGetRequests failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, err = w.Write(resBody)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleGetRequests failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// HandleNewCharge processes credit top-up charge creation requests.
func (h *Handler) HandleNewCharge() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()
		address, err := h.getAddress(r)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleNewCharge failed")
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		if r.Header.Get("Content-Type") != "application/json" {
			http.Error(w, "Invalid Content-Type", http.StatusBadRequest)
			return
		}
		b, err := ioutil.ReadAll(r.Body)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleNewCharge failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		var newCharge modeldto.NewCharge
		err = json.Unmarshal(b, &newCharge)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleNewCharge failed")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Info().Msg(fmt.Sprintf("new charge request detected for %d USD", newCharge.Amount))
		charge, err := h.billingService.CreateCharge(ctx, address, newCharge)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleNewCharge failed")
			var contextTimeoutExceededError *storageErrors.ContextTimeoutExceededError
			var illegalAmountError *billingErrors.IllegalAmountError
			var alreadyExistsError *storageErrors.AlreadyExistsError
			if errors.As(err, &contextTimeoutExceededError) {
				http.Error(w, err.Error(), http.StatusGatewayTimeout)
			} else if errors.As(err, &illegalAmountError) {
				http.Error(w, err.Error(), http.StatusBadRequest)
			} else if errors.As(err, &alreadyExistsError) {
				http.Error(w, err.Error(), http.StatusConflict)
			} else {
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
			return
		}
		resBody, err := json.Marshal(charge)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleNewCharge failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, err = w.Write(resBody)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleNewCharge failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// getAddress retrieves the wallet address from the request metadata.
func (h *Handler) getAddress(r *http.Request) (string, error) {
	accessToken := r.Header.Get("Authorization")
	if len(accessToken) == 0 {
		return "", errors.New("token authorization required")
	}
	accessToken = strings.Replace(accessToken, "Bearer ", "", 1)
	address, err := h.accountsService.GetAddress(accessToken)
	if err != nil {
		return "", err
	}
	return address, nil
}
