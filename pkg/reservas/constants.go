package reservas

import "time"

const (
	operationCreate        = "create"
	operationCreateGuest   = "create_guest"
	operationConfirmToken  = "confirm_token"
	operationConfirm       = "confirm"
	operationUpdate        = "update"
	operationCancel        = "cancel"
	operationDelete        = "delete"
	operationExpirePending = "expire_pending"
	operationSetCapacity   = "set_capacity"
	operationSetPaused     = "set_paused"

	operationStatusOK    = "ok"
	operationStatusError = "error"

	errorOperationService = "service"
	errorSubjectToken     = "token"
	errorSubjectSlotLock  = "slot_lock"
	errorSubjectOwnerLock = "owner_lock"
	errorCodeGenerate     = "generate"
	errorCodeAcquire      = "acquire"
)

const (
	// MaxSelfServicePartySize is the largest party bookable without contacting the restaurant.
	MaxSelfServicePartySize = 12
	// MaxReservationsPerUser caps reservations owned by one account.
	MaxReservationsPerUser = 4
	// DefaultMaxCapacity applies when no capacity setting is stored.
	DefaultMaxCapacity = 80
	MinCapacity        = 1
	MaxCapacity        = 160
	// ReportPageSize is the fixed page size of every reservation listing.
	ReportPageSize = 5
	// DefaultPendingTTL is how long a reservation may stay unconfirmed.
	DefaultPendingTTL = time.Hour
)

// Setting keys and their descriptions as stored alongside the values.
const (
	SettingMaxCapacity        = "capacidade_maxima"
	SettingReservationsPaused = "reservas_pausadas"

	settingMaxCapacityDescription        = "Capacidade máxima de pessoas no restaurante"
	settingReservationsPausedDescription = "Controla se as reservas estão pausadas ou não"
)

const (
	confirmationPathPrefix = "/api/confirmar-reserva/"

	subjectConfirmation = "Confirmação de Reserva"
	subjectCancellation = "Reserva Cancelada"
	titleAdminUpdate    = "Reserva alterada pelo estabelecimento"
	titleAdminCancel    = "Reserva cancelada pelo estabelecimento"
)
