package lark

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkIm "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeCreator struct {
	req  *larkIm.CreateMessageReq
	resp *larkIm.CreateMessageResp
	err  error
}

func (f *fakeCreator) Create(ctx context.Context, req *larkIm.CreateMessageReq, options ...larkcore.RequestOptionFunc) (*larkIm.CreateMessageResp, error) {
	f.req = req
	return f.resp, f.err
}

func TestMessenger_SendText(t *testing.T) {
	id := "om_123"
	fake := &fakeCreator{resp: &larkIm.CreateMessageResp{
		Data: &larkIm.CreateMessageRespData{MessageId: &id},
	}}
	m := &Messenger{messages: fake, logger: zap.NewNop()}

	got, err := m.SendText(context.Background(), ReceiveIDTypeChatID, "oc_billing", "2 invoices \"overdue\"\nINV-202610-0001")
	require.NoError(t, err)
	assert.Equal(t, "om_123", got)

	require.NotNil(t, fake.req)
	body := fake.req.Body
	require.NotNil(t, body)
	assert.Equal(t, "oc_billing", *body.ReceiveId)
	assert.Equal(t, msgTypeText, *body.MsgType)

	var content map[string]string
	require.NoError(t, json.Unmarshal([]byte(*body.Content), &content))
	assert.Equal(t, "2 invoices \"overdue\"\nINV-202610-0001", content["text"])
}

func TestMessenger_SendText_Errors(t *testing.T) {
	tests := []struct {
		name      string
		creator   *fakeCreator
		receiveID string
		text      string
		wantErr   string
	}{
		{
			name:      "empty receiver",
			creator:   &fakeCreator{},
			receiveID: "",
			text:      "hi",
			wantErr:   "receive id",
		},
		{
			name:      "empty text",
			creator:   &fakeCreator{},
			receiveID: "oc_1",
			text:      "",
			wantErr:   "text cannot be empty",
		},
		{
			name:      "transport failure",
			creator:   &fakeCreator{err: errors.New("connection reset")},
			receiveID: "oc_1",
			text:      "hi",
			wantErr:   "connection reset",
		},
		{
			name: "api failure",
			creator: &fakeCreator{resp: &larkIm.CreateMessageResp{
				CodeError: larkcore.CodeError{Code: 230002, Msg: "bot not in chat"},
			}},
			receiveID: "oc_1",
			text:      "hi",
			wantErr:   "code=230002",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Messenger{messages: tt.creator, logger: zap.NewNop()}
			_, err := m.SendText(context.Background(), ReceiveIDTypeChatID, tt.receiveID, tt.text)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
