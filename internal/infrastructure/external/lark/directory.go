package lark

import (
	"context"
	"fmt"

	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkcontact "github.com/larksuite/oapi-sdk-go/v3/service/contact/v3"
	"go.uber.org/zap"

	"github.com/garyjia/travel-approval/internal/application/port"
	"github.com/garyjia/travel-approval/internal/domain/entity"
)

type getUserFunc func(ctx context.Context, req *larkcontact.GetUserReq, options ...larkcore.RequestOptionFunc) (*larkcontact.GetUserResp, error)

// Directory resolves employees and their leaders through the Lark contact API
type Directory struct {
	getUser    getUserFunc
	userIDType string
	logger     *zap.Logger
}

func NewDirectory(c *Client, logger *zap.Logger) *Directory {
	return &Directory{
		getUser:    c.client.Contact.User.Get,
		userIDType: c.cfg.UserIDType,
		logger:     logger,
	}
}

// FetchEmployee returns (nil, nil) when the contact API has no such user.
func (d *Directory) FetchEmployee(ctx context.Context, employeeID string) (*entity.Employee, error) {
	req := larkcontact.NewGetUserReqBuilder().
		UserId(employeeID).
		UserIdType(d.userIDType).
		Build()

	resp, err := d.getUser(ctx, req)
	if err != nil {
		d.logger.Error("Failed to get user", zap.String("employee_id", employeeID), zap.Error(err))
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if !resp.Success() {
		d.logger.Warn("Contact API returned failure",
			zap.String("employee_id", employeeID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return nil, fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}
	if resp.Data == nil || resp.Data.User == nil {
		return nil, nil
	}

	user := resp.Data.User
	employee := &entity.Employee{
		EmployeeID:  employeeID,
		DisplayName: derefString(user.Name),
		Email:       derefString(user.Email),
	}
	if leader := derefString(user.LeaderUserId); leader != "" {
		employee.ManagerID = &leader
	}
	return employee, nil
}

var _ port.Directory = (*Directory)(nil)
