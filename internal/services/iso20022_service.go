package services

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/moov-io/iso20022/pkg/common"
	"github.com/moov-io/iso20022/pkg/pacs_v08"
	"github.com/ruralpay/payauth/internal/models"
)

const pacs008MessageType = "pacs.008.001.08"

var ErrQueueUnavailable = errors.New("settlement queue unavailable")

// ISO20022Service turns booked external payments into pacs.008 credit
// transfers and queues them per rail for the clearing gateway.
type ISO20022Service struct {
	redis   *redis.Client
	bankBIC string
	now     func() time.Time
	newID   func() string
}

func NewISO20022Service(client *redis.Client, bankBIC string) *ISO20022Service {
	return &ISO20022Service{
		redis:   client,
		bankBIC: bankBIC,
		now:     time.Now,
		newID:   func() string { return uuid.New().String() },
	}
}

// SettlementMessage is what the clearing gateway pops from the queue.
type SettlementMessage struct {
	MessageType string                       `json:"messageType"`
	Instruction models.SettlementInstruction `json:"instruction"`
	XML         string                       `json:"xml"`
}

func settlementQueue(rail string) string {
	return "settlement_queue:" + rail
}

func (iso *ISO20022Service) Enqueue(ctx context.Context, instruction models.SettlementInstruction) error {
	if iso.redis == nil {
		return ErrQueueUnavailable
	}

	doc, err := iso.CreatePacs008(instruction)
	if err != nil {
		return err
	}
	xmlData, err := iso.ConvertToXML(doc)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(SettlementMessage{
		MessageType: pacs008MessageType,
		Instruction: instruction,
		XML:         xmlData,
	})
	if err != nil {
		return err
	}

	if err := iso.redis.RPush(ctx, settlementQueue(instruction.Rail), string(payload)).Err(); err != nil {
		return fmt.Errorf("failed to queue settlement: %w", err)
	}
	log.Printf("[SETTLEMENT] queued %s on %s", instruction.TransactionID, instruction.Rail)
	return nil
}

// CreatePacs008 creates a pacs.008 FIToFICustomerCreditTransfer message
func (iso *ISO20022Service) CreatePacs008(in models.SettlementInstruction) (*pacs_v08.FIToFICustomerCreditTransferV08, error) {
	if in.Amount <= 0 {
		return nil, fmt.Errorf("settlement amount must be positive, got %d", in.Amount)
	}

	msgId := iso.newID()
	creDtTm := iso.now()
	settlementDate := in.CreatedAt
	amount := models.PenceToPounds(in.Amount).InexactFloat64()

	endToEnd := in.Reference
	if endToEnd == "" {
		endToEnd = "NOTPROVIDED"
	}

	doc := &pacs_v08.FIToFICustomerCreditTransferV08{
		GrpHdr: pacs_v08.GroupHeader93{
			MsgId:   common.Max35Text(msgId),
			CreDtTm: common.ISODateTime(creDtTm),
			NbOfTxs: "1",
			TtlIntrBkSttlmAmt: &pacs_v08.ActiveCurrencyAndAmount{
				Ccy:   common.ActiveCurrencyCode(in.Currency),
				Value: amount,
			},
			IntrBkSttlmDt: (*common.ISODate)(&settlementDate),
			SttlmInf: pacs_v08.SettlementInstruction7{
				SttlmMtd: "CLRG", // Clearing
			},
		},
		CdtTrfTxInf: []pacs_v08.CreditTransferTransaction39{
			{
				PmtId: pacs_v08.PaymentIdentification7{
					InstrId:    &[]common.Max35Text{common.Max35Text(in.TransactionID)}[0],
					EndToEndId: common.Max35Text(endToEnd),
					TxId:       &[]common.Max35Text{common.Max35Text(in.TransactionID)}[0],
				},
				IntrBkSttlmAmt: pacs_v08.ActiveCurrencyAndAmount{
					Ccy:   common.ActiveCurrencyCode(in.Currency),
					Value: amount,
				},
				IntrBkSttlmDt: (*common.ISODate)(&settlementDate),
				ChrgBr:        "SLEV",
				DbtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						BICFI: &[]common.BICFIDec2014Identifier{common.BICFIDec2014Identifier(iso.bankBIC)}[0],
					},
				},
				Dbtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(in.Debtor.Name)}[0],
				},
				CdtrAgt: pacs_v08.BranchAndFinancialInstitutionIdentification6{
					FinInstnId: pacs_v08.FinancialInstitutionIdentification18{
						ClrSysMmbId: &pacs_v08.ClearingSystemMemberIdentification2{
							MmbId: common.Max35Text(in.Creditor.SortCode),
						},
					},
				},
				Cdtr: pacs_v08.PartyIdentification135{
					Nm: &[]common.Max140Text{common.Max140Text(in.Creditor.Name)}[0],
				},
			},
		},
	}

	return doc, nil
}

// ConvertToXML converts ISO20022 document to XML string
func (iso *ISO20022Service) ConvertToXML(doc any) (string, error) {
	xmlData, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal XML: %w", err)
	}
	return xml.Header + string(xmlData), nil
}
