package api

import (
	"context"
	"net/http"
)

type VerificationStatus struct {
	FaceRegistered bool `json:"faceRegistered"`
	VerifiedToday  bool `json:"verifiedToday"`
}

type FaceResult struct {
	Success    bool     `json:"success"`
	Message    string   `json:"message"`
	Confidence *float64 `json:"confidence,omitempty"`
}

func (c *Client) VerificationRequired(ctx context.Context) (*VerificationStatus, error) {
	var status VerificationStatus
	if err := c.do(ctx, http.MethodGet, "/face-verification/required", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) RegisterFace(ctx context.Context, faceImageData string) (*FaceResult, error) {
	return c.submitFace(ctx, "/face-verification/register", faceImageData)
}

func (c *Client) VerifyFace(ctx context.Context, faceImageData string) (*FaceResult, error) {
	return c.submitFace(ctx, "/face-verification/verify", faceImageData)
}

func (c *Client) submitFace(ctx context.Context, path, faceImageData string) (*FaceResult, error) {
	var result FaceResult
	err := c.do(ctx, http.MethodPost, path, map[string]string{"faceImageData": faceImageData}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}
