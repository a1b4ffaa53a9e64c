package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ShipmentModel represents the database model for Shipments
type ShipmentModel struct {
	ID                  uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Reference           string     `gorm:"type:varchar(64);not null;uniqueIndex"`
	CustomerID          *uuid.UUID `gorm:"type:uuid;index"`
	CarrierCode         string     `gorm:"type:varchar(16);not null"`
	ShipmentType        string     `gorm:"column:shipment_type;type:varchar(16);not null"`
	Status              string     `gorm:"type:varchar(16);not null;default:'PENDING';index"`
	TotalContainers     int        `gorm:"not null;default:0"`
	CompletedContainers int        `gorm:"not null;default:0"`
	TotalOrders         int        `gorm:"not null;default:0"`
	CompletedOrders     int        `gorm:"not null;default:0"`
	LastFreeDay         *time.Time `gorm:"type:timestamptz"`
	CreatedAt           time.Time  `gorm:"not null;index"`
	UpdatedAt           time.Time  `gorm:"not null"`
}

func (ShipmentModel) TableName() string {
	return "shipments"
}

// ContainerModel represents the database model for Containers
type ContainerModel struct {
	ID                uuid.UUID       `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ShipmentID        uuid.UUID       `gorm:"type:uuid;not null;index"`
	ContainerNumber   string          `gorm:"type:varchar(11);not null"`
	Size              string          `gorm:"type:varchar(8);not null"`
	IsHazmat          bool            `gorm:"not null;default:false"`
	IsOverweight      bool            `gorm:"not null;default:false"`
	IsReefer          bool            `gorm:"not null;default:false"`
	LifecycleStatus   string          `gorm:"type:varchar(16);not null;default:'BOOKED'"`
	GateOutAt         *time.Time      `gorm:"type:timestamptz"`
	GateInAt          *time.Time      `gorm:"type:timestamptz"`
	FreeTimeExpiresAt *time.Time      `gorm:"type:timestamptz;index"`
	DemurrageStatus   string          `gorm:"type:varchar(16);not null;default:'OK'"`
	EstimatedCharge   decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	Version           int             `gorm:"not null;default:0"`
	CreatedAt         time.Time       `gorm:"not null"`
	UpdatedAt         time.Time       `gorm:"not null"`

	Shipment *ShipmentModel `gorm:"foreignKey:ShipmentID"`
}

func (ContainerModel) TableName() string {
	return "containers"
}

// OrderModel represents the database model for Orders
type OrderModel struct {
	ID           uuid.UUID       `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	OrderNumber  string          `gorm:"type:varchar(32);not null;uniqueIndex"`
	ContainerID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	ShipmentID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	TripID       *uuid.UUID      `gorm:"type:uuid;index"`
	Status       string          `gorm:"type:varchar(16);not null;default:'PENDING'"`
	MoveType     string          `gorm:"type:varchar(16)"`
	TotalCharges decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`
	DeletedAt    *time.Time      `gorm:"type:timestamptz;index"`
	CreatedAt    time.Time       `gorm:"not null"`
	UpdatedAt    time.Time       `gorm:"not null"`

	Container *ContainerModel `gorm:"foreignKey:ContainerID"`
}

func (OrderModel) TableName() string {
	return "orders"
}
